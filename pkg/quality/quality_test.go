package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const englishBody = `<p>The central bank kept interest rates unchanged on Thursday, saying inflation was
still running above its target even as economic growth slowed over the summer months.</p>
<p>Officials said they would continue to watch wage growth and energy prices closely before deciding
whether further tightening is needed later this year. Markets had largely expected the decision.</p>
<script>alert("x")</script><style>p{color:red}</style>
<div onclick="evil()"><a href="https://example.com/more" target="_blank">Read more</a></div>`

const russianBody = `<p>Центральный банк сохранил ключевую ставку без изменений в четверг, заявив, что инфляция
по-прежнему превышает целевой уровень, хотя экономический рост замедлился в летние месяцы.
Представители регулятора сообщили, что будут внимательно следить за ростом зарплат и цен на энергоносители.</p>`

const germanBody = `<p>Die Zentralbank hat die Zinsen am Donnerstag unverändert gelassen und erklärte, dass die Inflation
weiterhin über dem Zielwert liege, obwohl sich das Wirtschaftswachstum in den Sommermonaten verlangsamt habe.
Die Beamten sagten, sie würden die Lohnentwicklung und die Energiepreise genau beobachten.</p>`

func TestScorer_CleanHTML(t *testing.T) {
	s := New(0.5, nil)
	clean := s.CleanHTML(englishBody)
	assert.Contains(t, clean, "<p>")
	assert.Contains(t, clean, `<a href="https://example.com/more"`)
	assert.NotContains(t, clean, "<script")
	assert.NotContains(t, clean, "alert")
	assert.NotContains(t, clean, "color:red")
	assert.NotContains(t, clean, "onclick")
	assert.NotContains(t, clean, "target=")
	assert.NotContains(t, clean, "<div")

	assert.Equal(t, "one two & three", s.PlainText("<p>one</p><p>two &amp; three</p>"))
}

func TestScorer_Evaluate(t *testing.T) {
	s := New(0.5, []string{"en", "ru", "uk", "pl"})

	t.Run("english article passes", func(t *testing.T) {
		v := s.Evaluate("Central bank holds rates steady amid inflation worries", englishBody)
		assert.True(t, v.ShouldProcess, "issues: %v", v.Issues)
		assert.Equal(t, "en", v.Language)
		assert.False(t, v.Paywall)
		assert.Greater(t, v.Score, 0.8)
		assert.NotContains(t, v.Text, "<p>")
		assert.True(t, strings.HasPrefix(v.Text, "The central bank kept"))
	})

	t.Run("russian article passes", func(t *testing.T) {
		v := s.Evaluate("Центробанк сохранил ключевую ставку", russianBody)
		assert.True(t, v.ShouldProcess, "issues: %v", v.Issues)
		assert.Equal(t, "ru", v.Language)
	})

	t.Run("unsupported language rejected", func(t *testing.T) {
		v := s.Evaluate("Zentralbank lässt die Zinsen unverändert", germanBody)
		assert.False(t, v.ShouldProcess)
		assert.Equal(t, "de", v.Language)
		assert.Contains(t, v.Issues, "unsupported_language:de")
	})

	t.Run("paywall rejected", func(t *testing.T) {
		body := englishBody + `<p>Please subscribe now to continue reading this story.</p>`
		v := s.Evaluate("Central bank holds rates steady amid inflation worries", body)
		assert.True(t, v.Paywall)
		assert.False(t, v.ShouldProcess)
		assert.Contains(t, v.Issues, "paywall")
	})

	t.Run("empty body rejected", func(t *testing.T) {
		v := s.Evaluate("Central bank holds rates steady amid inflation worries", "<script>x</script>")
		assert.False(t, v.ShouldProcess)
		assert.Contains(t, v.Issues, "empty_content")
	})

	t.Run("short title penalised", func(t *testing.T) {
		v := s.Evaluate("Rates", englishBody)
		require.NotEmpty(t, v.Issues)
		assert.Contains(t, v.Issues, "title_length:5")
	})
}

func TestScorer_MinQuality(t *testing.T) {
	strict := New(0.99, nil)
	v := strict.Evaluate("Central bank holds rates steady", "<p>The central bank kept interest rates unchanged on Thursday.</p>")
	assert.False(t, v.ShouldProcess)
	found := false
	for _, issue := range v.Issues {
		if strings.HasPrefix(issue, "low_quality:") {
			found = true
		}
	}
	assert.True(t, found, "issues: %v", v.Issues)
}

func TestTitleBand(t *testing.T) {
	assert.InDelta(t, 0.0, titleBand(5), 1e-9)
	assert.InDelta(t, 0.5, titleBand(15), 1e-9)
	assert.InDelta(t, 1.0, titleBand(60), 1e-9)
	assert.InDelta(t, 0.5, titleBand(250), 1e-9)
	assert.InDelta(t, 0.0, titleBand(400), 1e-9)
}

func TestIsPaywalled(t *testing.T) {
	tbl := []struct {
		text string
		want bool
	}{
		{"Subscribe today to continue reading", true},
		{"This site has a paywall.", true},
		{"You have 2 free articles remaining this month", true},
		{"This article is only available to paid subscribers", true},
		{"Материал только для подписчиков", true},
		{"The company paid its subscribers a dividend and continued growing.", false},
		{"Markets rallied on Friday", false},
	}
	for _, tt := range tbl {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPaywalled(tt.text))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Empty(t, DetectLanguage("   "))
	assert.Equal(t, "uk", DetectLanguage("Центральний банк залишив облікову ставку без змін, заявивши, що інфляція все ще перевищує цільовий рівень, і що ціни на енергоносії залишаються високими."))
	assert.Equal(t, "pl", DetectLanguage("Bank centralny pozostawił stopy procentowe bez zmian, twierdząc, że inflacja wciąż przekracza cel, a wzrost gospodarczy spowolnił w miesiącach letnich."))
}
