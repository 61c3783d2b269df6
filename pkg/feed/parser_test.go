package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denius89/news-ai-bot-sub002/pkg/fetch"
)

func TestParser_RSS(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Example</title>
  <link>https://example.com/</link>
  <item>
    <title>First post</title>
    <link>/posts/1</link>
    <description>short one</description>
    <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0300</pubDate>
  </item>
  <item>
    <title>Second post</title>
    <link>https://example.com/posts/2</link>
    <description>desc</description>
  </item>
</channel>
</rss>`
	doc, err := NewParser(0).Parse([]byte(body), "application/rss+xml", "https://example.com/feed")
	require.NoError(t, err)
	assert.Equal(t, KindRSS, doc.Kind())

	items := doc.FeedItems()
	require.Len(t, items, 2)
	assert.Equal(t, "First post", items[0].Title)
	assert.Equal(t, "https://example.com/posts/1", items[0].URL)
	assert.Equal(t, "<p>Full body</p>", items[0].ContentHTML)
	assert.Equal(t, "short one", items[0].Summary)
	require.NotNil(t, items[0].DatePublished)
	assert.Equal(t, time.Date(2006, 1, 2, 12, 4, 5, 0, time.UTC), *items[0].DatePublished)
	assert.Equal(t, time.UTC, items[0].DatePublished.Location())
	assert.Nil(t, items[1].DatePublished)
}

func TestParser_AtomLinks(t *testing.T) {
	body := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom</title>
  <entry>
    <title>Unadorned link</title>
    <link href="/a/1"/>
    <id>urn:1</id>
    <summary>sum</summary>
    <updated>2024-03-01T10:00:00+02:00</updated>
  </entry>
  <entry>
    <title>Alternate wins</title>
    <link rel="enclosure" href="https://cdn.example.com/x.mp3"/>
    <link rel="alternate" href="https://example.com/a/2"/>
    <id>urn:2</id>
    <summary>sum2</summary>
    <content type="html">&lt;p&gt;body&lt;/p&gt;</content>
    <published>2024-03-02T10:00:00Z</published>
    <updated>2024-03-03T10:00:00Z</updated>
  </entry>
  <entry>
    <title>Only self</title>
    <link rel="self" href="https://example.com/a/3.atom"/>
    <id>urn:3</id>
  </entry>
</feed>`
	doc, err := NewParser(0).Parse([]byte(body), "application/atom+xml", "https://example.com/feed.atom")
	require.NoError(t, err)
	assert.Equal(t, KindAtom, doc.Kind())

	items := doc.FeedItems()
	require.Len(t, items, 3)
	assert.Equal(t, "https://example.com/a/1", items[0].URL)
	assert.Empty(t, items[0].ContentHTML)
	assert.Equal(t, "sum", items[0].Summary)
	assert.Equal(t, "sum", items[0].BestHTML(), "summary used when content is missing")
	require.NotNil(t, items[0].DatePublished)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), *items[0].DatePublished, "falls back to updated")

	assert.Equal(t, "https://example.com/a/2", items[1].URL)
	assert.Equal(t, "<p>body</p>", items[1].ContentHTML)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), *items[1].DatePublished)

	assert.Equal(t, "https://example.com/a/3.atom", items[2].URL)
}

func TestParser_JSONFeed(t *testing.T) {
	body := `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "JF",
  "items": [
    {"id": "1", "url": "https://example.com/1", "title": "One", "content_html": "<p>x</p>",
     "summary": "s", "date_published": "2024-02-01T10:00:00-05:00"},
    {"id": "2", "external_url": "/ext/2", "title": "Two", "content_text": "plain",
     "date_modified": "2024-02-02T10:00:00Z"}
  ]
}`
	doc, err := NewParser(0).Parse([]byte(body), "application/feed+json", "https://example.com/feed.json")
	require.NoError(t, err)
	assert.Equal(t, KindJSON, doc.Kind())

	items := doc.FeedItems()
	require.Len(t, items, 2)
	assert.Equal(t, "https://example.com/1", items[0].URL)
	assert.Equal(t, "<p>x</p>", items[0].ContentHTML)
	assert.Equal(t, time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC), *items[0].DatePublished)
	assert.Equal(t, "https://example.com/ext/2", items[1].URL)
	assert.Equal(t, "plain", items[1].ContentText)
	assert.Equal(t, time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC), *items[1].DatePublished)
}

func TestParser_WordPress(t *testing.T) {
	body := `[
  {"title": {"rendered": "WP one"}, "content": {"rendered": "<p>c1</p>"}, "excerpt": {"rendered": "e1"},
   "link": "https://blog.example.com/one", "date": "2024-04-01T09:30:00", "date_gmt": "2024-04-01T06:30:00"},
  {"title": "WP two", "content": "<p>c2</p>", "link": "/two", "date": "2024-04-02T09:30:00"}
]`
	doc, err := NewParser(0).Parse([]byte(body), "application/json", "https://blog.example.com/wp-json/wp/v2/posts")
	require.NoError(t, err)
	assert.Equal(t, KindWordPress, doc.Kind())

	items := doc.FeedItems()
	require.Len(t, items, 2)
	assert.Equal(t, "WP one", items[0].Title)
	assert.Equal(t, "<p>c1</p>", items[0].ContentHTML)
	assert.Equal(t, "e1", items[0].Summary)
	assert.Equal(t, time.Date(2024, 4, 1, 6, 30, 0, 0, time.UTC), *items[0].DatePublished)
	assert.Equal(t, "WP two", items[1].Title)
	assert.Equal(t, "https://blog.example.com/two", items[1].URL)
	assert.Equal(t, time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC), *items[1].DatePublished)
}

func TestParser_HTML(t *testing.T) {
	body := `<!DOCTYPE html><html><head>
<link rel="alternate" type="application/rss+xml" href="/rss.xml">
<link rel="alternate" type="application/atom+xml" href="https://example.com/atom.xml">
<link rel="stylesheet" href="/style.css">
</head><body><article>text</article></body></html>`
	doc, err := NewParser(0).Parse([]byte(body), "text/html", "https://example.com/news/")
	require.NoError(t, err)
	html, ok := doc.(*HTMLDoc)
	require.True(t, ok)
	assert.Nil(t, html.FeedItems())
	assert.Equal(t, []string{"https://example.com/rss.xml", "https://example.com/atom.xml"}, html.DiscoverFeeds())
}

func TestParser_Unknown(t *testing.T) {
	_, err := NewParser(0).Parse([]byte("just text"), "text/plain", "https://example.com")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParser_ControlBytesRetry(t *testing.T) {
	body := "<?xml version=\"1.0\"?><rss version=\"2.0\"><channel><title>t</title>" +
		"<item><title>Broken\x0b title</title><link>https://example.com/x</link></item></channel></rss>"
	doc, err := NewParser(0).Parse([]byte(body), "application/rss+xml", "https://example.com/feed")
	require.NoError(t, err)
	items := doc.FeedItems()
	require.Len(t, items, 1)
	assert.Equal(t, "Broken title", items[0].Title)
}

func TestParser_UnsafeXML(t *testing.T) {
	xxe := `<?xml version="1.0"?><!DOCTYPE rss [<!ENTITY x SYSTEM "http://127.0.0.1:1/steal">]>` +
		`<rss><channel><item><title>&x;</title></item></channel></rss>`
	_, err := NewParser(0).Parse([]byte(xxe), "application/rss+xml", "https://example.com/feed")
	assert.ErrorIs(t, err, fetch.ErrXMLEntity)

	deep := `<?xml version="1.0"?><rss>` + strings.Repeat("<x>", 60) + strings.Repeat("</x>", 60) + `</rss>`
	_, err = NewParser(0).Parse([]byte(deep), "application/rss+xml", "https://example.com/feed")
	assert.ErrorIs(t, err, fetch.ErrXMLTooDeep)

	big := `<?xml version="1.0"?><rss>` + strings.Repeat(" ", 100) + `</rss>`
	_, err = NewParser(64).Parse([]byte(big), "application/rss+xml", "https://example.com/feed")
	assert.ErrorIs(t, err, fetch.ErrOversized)
}

func TestParseDate(t *testing.T) {
	tbl := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02T03:04:05+02:00", time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)},
		{"2024-01-02T03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"Tue, 02 Jan 2024 03:04:05 +0000", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2024-05-01 10:00:00 +0300", time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)},
		{"May 1, 2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"Wed, 01 May 2024 10:00:00 GMT", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tbl {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDate(tt.in)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("yesterday"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a/b", ResolveURL("https://example.com/feed", "/a/b"))
	assert.Equal(t, "https://example.com/dir/x", ResolveURL("https://example.com/dir/feed", "x"))
	assert.Equal(t, "https://other.com/y", ResolveURL("https://example.com/feed", "https://other.com/y"))
	assert.Equal(t, "/rel", ResolveURL("", "/rel"))
	assert.Empty(t, ResolveURL("https://example.com", "  "))
}
