package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestDissect_SplitsValidURL(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl:81/test?a=b&c=d"))
	require.NoError(t, err)
	assert.Equal(t, Parts{Host: "google.pl", Port: 81, PathAndQuery: "/test?a=b&c=d"}, p)
}

func TestDissect_WorksWithHTTPS(t *testing.T) {
	p, err := Dissect(mustParse(t, "https://google.pl:81/test?a=b&c=d"))
	require.NoError(t, err)
	assert.Equal(t, Parts{Host: "google.pl", Port: 81, PathAndQuery: "/test?a=b&c=d"}, p)
}

func TestDissect_DefaultPorts(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl/test"))
	require.NoError(t, err)
	assert.Equal(t, 80, p.Port)

	p, err = Dissect(mustParse(t, "https://google.pl/test"))
	require.NoError(t, err)
	assert.Equal(t, 443, p.Port)
}

func TestDissect_DiscardsFragment(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl:81/test?a=b&c=d#fragment"))
	require.NoError(t, err)
	assert.Equal(t, "/test?a=b&c=d", p.PathAndQuery)
}

func TestDissect_RootPathWhenMissing(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl:81"))
	require.NoError(t, err)
	assert.Equal(t, "/", p.PathAndQuery)
}

func TestDissect_ConvertsIDNToPunycode(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://例子.测试:81/test?a=b&c=d"))
	require.NoError(t, err)
	assert.Equal(t, "xn--fsqu00a.xn--0zwm56d", p.Host)
}

func TestDissect_EscapesNonASCIIPath(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl:81/首页"))
	require.NoError(t, err)
	assert.Equal(t, "/%E9%A6%96%E9%A1%B5", p.PathAndQuery)
}

func TestDissect_KeepsStructuralCharactersUnescaped(t *testing.T) {
	p, err := Dissect(mustParse(t, "http://google.pl:81/首/页?软件=帮助&联络=العربي"))
	require.NoError(t, err)
	assert.Equal(t,
		"/%E9%A6%96/%E9%A1%B5?%E8%BD%AF%E4%BB%B6=%E5%B8%AE%E5%8A%A9&%E8%81%94%E7%BB%9C=%D8%A7%D9%84%D8%B9%D8%B1%D8%A8%D9%8A",
		p.PathAndQuery)
}

func TestDissect_RejectsUnexpectedScheme(t *testing.T) {
	_, err := Dissect(mustParse(t, "ftp://google.pl/file"))
	assert.Error(t, err)
}

func TestRequestURL_OmitsDefaultPorts(t *testing.T) {
	p := Parts{Host: "example.com", Port: 80, PathAndQuery: "/"}
	assert.Equal(t, "http://example.com/", p.RequestURL("http"))

	p.Port = 8080
	assert.Equal(t, "http://example.com:8080/", p.RequestURL("http"))

	p = Parts{Host: "example.com", Port: 443, PathAndQuery: "/x"}
	assert.Equal(t, "https://example.com/x", p.RequestURL("https"))
}

func TestEscape_LeavesSafeStringsAlone(t *testing.T) {
	s := "/already-safe/path?k=v&x=y"
	assert.Equal(t, s, Escape(s))
}

func TestEscape_EncodesSpaces(t *testing.T) {
	assert.Equal(t, "/a%20b", Escape("/a b"))
}
