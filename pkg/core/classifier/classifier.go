// Package classifier scores uploaded documents against the industry table and
// selects the valuation and financing profile for the deal.
package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/models"

	"go.uber.org/zap"
)

const (
	keywordPoints   = 10
	prefixPoints    = 20
	signaturePoints = 10
)

// matcher is an industry definition with its keyword patterns compiled.
type matcher struct {
	def      knowledge.IndustryDefinition
	phrases  []string
	patterns []*regexp.Regexp
}

// Classifier is safe for concurrent use. It holds no mutable state.
type Classifier struct {
	tables   *knowledge.Tables
	matchers []matcher
	logger   *zap.Logger
}

// New compiles the keyword table once. A nil logger disables logging.
func New(tables *knowledge.Tables, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Classifier{tables: tables, logger: logger}
	for _, def := range tables.Industries() {
		m := matcher{def: def}
		phrases := append(append([]string{}, def.Keywords...), def.FinancialPatterns...)
		for _, p := range phrases {
			if p == "" {
				continue
			}
			m.phrases = append(m.phrases, p)
			m.patterns = append(m.patterns, wordPattern(p))
		}
		c.matchers = append(c.matchers, m)
	}
	return c
}

// wordPattern matches a phrase on word boundaries so "arr" does not fire on
// "carrier".
func wordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(phrase) + `($|[^\p{L}\p{N}])`)
}

// Score is one industry's tally.
type Score struct {
	Industry models.IndustryType
	Points   int
	Matched  []string
}

// Scores tallies every industry in table order.
//
// +10 per keyword or financial pattern found in documentText + " " + fileName,
// +20 when the filename's leading token equals the industry prefix,
// +10 per signature line item the statement reports with a known amount.
func (c *Classifier) Scores(documentText, fileName string, fs *models.FinancialStatement) []Score {
	haystack := documentText + " " + fileName
	lead := leadingToken(fileName)

	scores := make([]Score, 0, len(c.matchers))
	for _, m := range c.matchers {
		s := Score{Industry: m.def.Type}
		for i, re := range m.patterns {
			if re.MatchString(haystack) {
				s.Points += keywordPoints
				s.Matched = append(s.Matched, m.phrases[i])
			}
		}
		if m.def.Prefix != "" && lead == m.def.Prefix {
			s.Points += prefixPoints
			s.Matched = append(s.Matched, "filename:"+m.def.Prefix)
		}
		for _, line := range m.def.SignatureLines {
			if _, _, ok := fs.LatestPositive(line); ok {
				s.Points += signaturePoints
				s.Matched = append(s.Matched, "line:"+string(line))
			}
		}
		scores = append(scores, s)
	}
	return scores
}

// Classify picks the highest-scoring industry. Ties go to the industry
// declared first in the table; this is arbitrary but stable. With no score
// above zero the result is general_business with confidence 0.
func (c *Classifier) Classify(documentText, fileName string, fs *models.FinancialStatement) models.BusinessProfile {
	var best *Score
	scores := c.Scores(documentText, fileName, fs)
	for i := range scores {
		if scores[i].Points <= 0 {
			continue
		}
		if best == nil || scores[i].Points > best.Points {
			best = &scores[i]
		}
	}

	if best == nil {
		c.logger.Debug("[CLASSIFIER] No industry signal, using general business",
			zap.String("file", fileName))
		return c.profile(models.IndustryGeneralBusiness, 0, nil)
	}

	c.logger.Debug("[CLASSIFIER] Industry selected",
		zap.String("industry", string(best.Industry)),
		zap.Int("score", best.Points),
		zap.Strings("matched", best.Matched))
	return c.profile(best.Industry, best.Points, best.Matched)
}

// Profile returns the static profile for a known industry, e.g. when the user
// overrides the classification.
func (c *Classifier) Profile(it models.IndustryType) models.BusinessProfile {
	return c.profile(it, 0, nil)
}

func (c *Classifier) profile(it models.IndustryType, score int, matched []string) models.BusinessProfile {
	def := c.tables.Lookup(it)
	return models.BusinessProfile{
		IndustryType:     def.Type,
		ConfidenceScore:  score,
		ValuationModel:   def.Valuation,
		FinancingProfile: def.Financing,
		MatchedKeywords:  append([]string(nil), matched...),
	}
}

// leadingToken returns the lower-cased first alphanumeric run of a filename.
func leadingToken(fileName string) string {
	name := strings.ToLower(strings.TrimSpace(fileName))
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
