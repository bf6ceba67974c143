package repository

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"presale/models"
)

// Flat top-level keys older clients wrote before sections were nested.
// Each canonical key lists the legacy aliases it may appear under.
var (
	legacyCustomerKeys = map[string][]string{
		"customerType": {"customerType"},
		"title":        {"title"},
		"firstName":    {"firstName"},
		"lastName":     {"lastName"},
		"companyName":  {"companyName", "corporateName"},
		"email":        {"email", "customerEmail"},
		"phone":        {"phone", "mobile", "mobileNumber"},
		"address":      {"address"},
		"city":         {"city"},
		"state":        {"state"},
		"pincode":      {"pincode", "pinCode"},
		"gstin":        {"gstin"},
	}
	legacyPolicyKeys = map[string][]string{
		"policyType":        {"policyType"},
		"policyFor":         {"policyFor"},
		"vehicleClass":      {"vehicleClass"},
		"vehicleType":       {"vehicleType"},
		"oem":               {"oem", "make", "manufacturer"},
		"model":             {"model"},
		"variant":           {"variant"},
		"yearOfManufacture": {"yearOfManufacture", "manufacturingYear"},
		"registrationCity":  {"registrationCity", "rtoCity"},
		"exShowroomPrice":   {"exShowroomPrice"},
		"policyTerm":        {"policyTerm"},
		"quotationDate":     {"quotationDate"},
	}
	legacyQuoteKeys = map[string][]string{
		"quoteId":      {"quoteId"},
		"companyName":  {"insurerName", "insurer", "insuranceCompany"},
		"totalPremium": {"totalPremium", "premium"},
		"idv":          {"idv"},
		"status":       {"quoteStatus"},
		"policyNumber": {"policyNumber"},
	}
)

// Normalize maps any stored proposal shape, nested or legacy flat, onto the
// canonical Proposal. Nothing past this function branches on record shape.
func Normalize(raw []byte) (*models.Proposal, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode proposal: empty record")
	}

	liftSection(doc, "customerInfo", legacyCustomerKeys)
	liftSection(doc, "policyDetails", legacyPolicyKeys)
	if _, ok := doc["selectedQuote"].(map[string]interface{}); !ok {
		if quote := pick(doc, legacyQuoteKeys); quote["companyName"] != nil {
			doc["selectedQuote"] = quote
		} else {
			delete(doc, "selectedQuote")
		}
	}

	if pd, ok := doc["policyDetails"].(map[string]interface{}); ok {
		if s, ok := asString(pd["yearOfManufacture"]); ok {
			pd["yearOfManufacture"] = s
		}
	}
	if s, ok := doc["status"].(string); ok {
		doc["status"] = strings.ToUpper(strings.TrimSpace(s))
	}
	if s, ok := doc["kycStatus"].(string); ok {
		doc["kycStatus"] = strings.ToLower(strings.TrimSpace(s))
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode proposal: %w", err)
	}
	p := new(models.Proposal)
	if err := json.Unmarshal(canonical, p); err != nil {
		return nil, fmt.Errorf("decode canonical proposal: %w", err)
	}

	applyDefaults(p)
	return p, nil
}

func applyDefaults(p *models.Proposal) {
	if p.Status == "" {
		p.Status = models.ProposalDraft
	}
	if p.KYCStatus == "" {
		p.KYCStatus = models.KYCPending
	}
	if p.CustomerInfo.CustomerType == "" {
		p.CustomerInfo.CustomerType = models.CustomerIndividual
	}
	if p.SelectedQuote != nil && p.SelectedQuote.Status == "" {
		p.SelectedQuote.Status = models.QuotePending
	}
	// The two conversion flags move together; legacy rows sometimes set only one.
	if p.IsConverted() {
		p.Status = models.ProposalConverted
		if p.SelectedQuote != nil {
			p.SelectedQuote.Status = models.QuoteConverted
		}
	}
	if p.Version < 1 {
		p.Version = 1
	}
}

// liftSection builds section from flat keys when the nested object is absent.
func liftSection(doc map[string]interface{}, section string, keys map[string][]string) {
	if _, ok := doc[section].(map[string]interface{}); ok {
		return
	}
	doc[section] = pick(doc, keys)
}

func pick(doc map[string]interface{}, keys map[string][]string) map[string]interface{} {
	out := make(map[string]interface{})
	for canonical, aliases := range keys {
		for _, alias := range aliases {
			if v, ok := doc[alias]; ok && v != nil {
				out[canonical] = v
				break
			}
		}
	}
	return out
}

// asString accepts a year written as text or as a JSON number.
func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// encode is the single writer of the canonical record shape.
func encode(p *models.Proposal) ([]byte, error) {
	return json.Marshal(p)
}
