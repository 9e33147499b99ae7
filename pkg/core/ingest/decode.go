// Package ingest decodes the payloads handed over by the document-extraction
// collaborators into the engine's models. Payloads may be strict JSON,
// slightly broken JSON, or hand-edited Hjson; amounts may be numbers,
// currency strings or null.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"deal_engine/pkg/core/utils"
	"deal_engine/pkg/models"
)

// ErrEmptyPayload is returned for an empty or whitespace-only payload.
var ErrEmptyPayload = errors.New("empty payload")

var knownKinds = []models.LineItemKind{
	models.LineRevenue,
	models.LineCostOfRevenue,
	models.LineGrossProfit,
	models.LineOperatingExpenses,
	models.LineEBITDA,
	models.LineAdjustedEBITDA,
	models.LineRecastEBITDA,
	models.LineSDE,
	models.LineNetIncome,
	models.LineCommissionIncome,
	models.LineCashFlow,
	models.LineOwnerComp,
}

// kindAliases maps a folded key (lower case, no separators) to its kind, so
// "adjusted_ebitda", "Adjusted EBITDA" and "adjustedEbitda" all resolve.
var kindAliases = func() map[string]models.LineItemKind {
	m := make(map[string]models.LineItemKind, len(knownKinds)+4)
	for _, k := range knownKinds {
		m[foldKey(string(k))] = k
	}
	m["sales"] = models.LineRevenue
	m["cogs"] = models.LineCostOfRevenue
	m["opex"] = models.LineOperatingExpenses
	m["ownercomp"] = models.LineOwnerComp
	return m
}()

func foldKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LookupKind resolves a line-item name.
func LookupKind(name string) (models.LineItemKind, bool) {
	k, ok := kindAliases[foldKey(name)]
	return k, ok
}

type statementPayload struct {
	Periods        []string                              `json:"periods"`
	LineItems      map[string]map[string]json.RawMessage `json:"line_items"`
	LineItemsCamel map[string]map[string]json.RawMessage `json:"lineItems"`
}

type pricePayload struct {
	Amount           json.RawMessage `json:"amount"`
	SourceConfidence float64         `json:"source_confidence"`
	DocumentSourced  bool            `json:"document_sourced"`
	Source           string          `json:"source"`
}

type dealPayload struct {
	Statement      json.RawMessage `json:"statement"`
	DocumentText   string          `json:"document_text"`
	FileName       string          `json:"file_name"`
	ExtractedPrice json.RawMessage `json:"extracted_price"`
}

// Statement is a decoded statement with everything that was dropped or
// looked wrong on the way in.
type Statement struct {
	Statement *models.FinancialStatement
	Warnings  []string
	Strategy  utils.Strategy
}

// Deal is a decoded upload: the statement plus what the classifier and the
// generator need from the source document.
type Deal struct {
	Statement      *models.FinancialStatement
	DocumentText   string
	FileName       string
	ExtractedPrice *models.ExtractedPurchasePrice
	Warnings       []string
}

func parse(raw []byte, dst interface{}) (utils.Strategy, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", ErrEmptyPayload
	}
	return utils.SmartParse(string(raw), dst)
}

// DecodeStatement decodes a financial statement. Unknown line items are
// dropped, negative amounts become unknown, and subtotals that disagree with
// their parts are reported; all of these are warnings, not errors.
func DecodeStatement(raw []byte) (Statement, error) {
	var p statementPayload
	strategy, err := parse(raw, &p)
	if err != nil {
		return Statement{}, fmt.Errorf("decode statement: %w", err)
	}
	fs, warnings := p.build()
	if strategy != utils.StrategyJSON {
		warnings = append([]string{fmt.Sprintf("statement accepted via %s", strategy)}, warnings...)
	}
	return Statement{Statement: fs, Warnings: warnings, Strategy: strategy}, nil
}

func (p statementPayload) build() (*models.FinancialStatement, []string) {
	items := p.LineItems
	if len(items) == 0 {
		items = p.LineItemsCamel
	}

	var warnings []string
	fs := models.NewFinancialStatement()
	for _, period := range p.Periods {
		if period = strings.TrimSpace(period); period != "" {
			fs.Periods = appendUnique(fs.Periods, period)
		}
	}
	declared := len(fs.Periods) > 0

	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, ok := LookupKind(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown line item %q dropped", name))
			continue
		}
		row := fs.LineItems[kind]
		if row == nil {
			row = make(map[string]*float64)
			fs.LineItems[kind] = row
		}
		periods := make([]string, 0, len(items[name]))
		for period := range items[name] {
			periods = append(periods, period)
		}
		sort.Strings(periods)

		for _, period := range periods {
			amount, err := ParseAmount(items[name][period])
			switch {
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("%s %s: %v; treated as unknown", name, period, err))
			case amount != nil && *amount < 0:
				warnings = append(warnings, fmt.Sprintf("%s %s: negative amount %.0f treated as unknown", name, period, *amount))
				amount = nil
			}
			row[period] = amount
			if declared {
				fs.Periods = appendUnique(fs.Periods, period)
			}
		}
	}

	warnings = append(warnings, Mismatches(Reconcile(fs))...)
	return fs, warnings
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// DecodePurchasePrice decodes an extracted asking price. A null or
// unparseable amount yields a zero amount, which the generator ignores.
func DecodePurchasePrice(raw []byte) (*models.ExtractedPurchasePrice, error) {
	var p pricePayload
	if _, err := parse(raw, &p); err != nil {
		return nil, fmt.Errorf("decode purchase price: %w", err)
	}
	return p.build(), nil
}

func (p pricePayload) build() *models.ExtractedPurchasePrice {
	out := &models.ExtractedPurchasePrice{
		SourceConfidence: p.SourceConfidence,
		DocumentSourced:  p.DocumentSourced,
		Source:           p.Source,
	}
	if amount, err := ParseAmount(p.Amount); err == nil && amount != nil && *amount > 0 {
		out.Amount = *amount
	}
	return out
}

// DecodeDeal decodes a full upload payload.
func DecodeDeal(raw []byte) (Deal, error) {
	var p dealPayload
	strategy, err := parse(raw, &p)
	if err != nil {
		return Deal{}, fmt.Errorf("decode deal: %w", err)
	}

	d := Deal{DocumentText: p.DocumentText, FileName: p.FileName}
	if strategy != utils.StrategyJSON {
		d.Warnings = append(d.Warnings, fmt.Sprintf("deal accepted via %s", strategy))
	}

	if isPresent(p.Statement) {
		var sp statementPayload
		if err := json.Unmarshal(p.Statement, &sp); err != nil {
			return Deal{}, fmt.Errorf("decode deal statement: %w", err)
		}
		fs, warnings := sp.build()
		d.Statement = fs
		d.Warnings = append(d.Warnings, warnings...)
	} else {
		d.Statement = models.NewFinancialStatement()
		d.Warnings = append(d.Warnings, "no statement in payload")
	}

	if isPresent(p.ExtractedPrice) {
		var pp pricePayload
		if err := json.Unmarshal(p.ExtractedPrice, &pp); err != nil {
			return Deal{}, fmt.Errorf("decode deal price: %w", err)
		}
		d.ExtractedPrice = pp.build()
	}
	return d, nil
}

func isPresent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}
