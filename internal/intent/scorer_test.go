package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreExamples(t *testing.T) {
	c := newTestClassifier(t)

	cases := []struct {
		message string
		want    int
	}{
		{"relatorio_final.pdf", 70},
		{"busque o relatorio_final.pdf", 85},
		{"Busque o RELATORIO_FINAL.PDF", 85},
		{"qual a capital da frança?", 0},
		// Keyword inside a longer word still counts as a substring match.
		{"arquivos", 20},
		{"buscar o documento", 35},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Score(tc.message).Total)
		})
	}
}

func TestScoreIsClampedAfterSumming(t *testing.T) {
	c := newTestClassifier(t)

	high := c.Score("buscar busque encontrar procure o arquivo documento planilha apresentação relatório.pdf")
	assert.Equal(t, 100, high.Total)
	assert.Equal(t, 1.0, high.Value())

	low := c.Score("acho que talvez seja uma ideia, estou pensando")
	assert.Equal(t, 0, low.Total)
	assert.Equal(t, 4, low.CasualWords)

	// 0.5 + 0.2 + 0.2 - 0.2 stays positive: penalties apply to the raw sum.
	mixed := c.Score("talvez o arquivo ata.pdf")
	assert.Equal(t, 70, mixed.Total)
}

func TestScoreBoundsOverSamples(t *testing.T) {
	c := newTestClassifier(t)
	samples := []string{
		"", "   ", "📄📄📄", "ideia ideia ideia", "x.docx y.pdf z.xlsx",
		"procure ache encontre liste busque buscar", "RELATÓRIO.PPTX",
	}
	for _, s := range samples {
		got := c.FileScore(s)
		assert.GreaterOrEqualf(t, got, 0.0, "FileScore(%q)", s)
		assert.LessOrEqualf(t, got, 1.0, "FileScore(%q)", s)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	c := newTestClassifier(t)

	b := c.Score("relatorio_final.pdf")
	assert.Equal(t, c.bundle.Scoring.Threshold, b.Total)
	assert.Equal(t, General, c.Classify(Context{Message: "relatorio_final.pdf"}))
}
