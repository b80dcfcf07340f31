package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Fixed texts returned without a remote call.
const (
	CustomerNotFoundText = "We could not find that customer yet. Try another profile."
	EmptyQuestionText    = "Ask a sales question to get started."
	DefaultReasonText    = "Strong match based on recent gifting signals."
	DefaultTone          = "light and professional"
)

// Generator produces reasons, plan summaries, letters and sales answers.
type Generator struct {
	client *Client
	logger *observability.Logger
}

// NewGenerator creates a generator over client.
func NewGenerator(client *Client, logger *observability.Logger) *Generator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Generator{client: client, logger: logger.WithComponent("generation")}
}

// RemoteEnabled reports whether a remote provider is configured.
func (g *Generator) RemoteEnabled() bool {
	return Configured(g.client.Provider())
}

// ReasonCustomer is the customer context sent with reason requests.
type ReasonCustomer struct {
	LoyaltyTier       string `json:"loyalty_tier"`
	PreferredLanguage string `json:"preferred_language"`
}

// ReasonItem describes one recommendation to explain.
type ReasonItem struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	Rating      *float64 `json:"rating"`
	Persona     string   `json:"persona"`
	Delivery    string   `json:"delivery_speed"`
}

// Reasons writes one short reason per item. The remote answer is used only
// when it is a JSON object whose reasons array matches items one to one.
func (g *Generator) Reasons(ctx context.Context, customer ReasonCustomer, items []ReasonItem) ReasonsResult {
	if len(items) == 0 {
		return ReasonsResult{Reasons: []string{}, Source: SourceHeuristic}
	}

	var detail string
	if g.RemoteEnabled() {
		payload, _ := json.Marshal(struct {
			Customer        ReasonCustomer `json:"customer"`
			Recommendations []ReasonItem   `json:"recommendations"`
		}{customer, items})

		messages := []Message{
			{Role: "system", Content: "You are a helpful assistant that writes short reasons for gift " +
				"recommendations. Return JSON with a 'reasons' array. Each reason " +
				"should be one sentence, <= 18 words. Write in English."},
			{Role: "user", Content: "Create reasons for each recommendation in order. JSON only. " +
				"Input: " + string(payload)},
		}

		content, err := g.client.CompleteValid(ctx, messages, 0.2, 400, func(content string) error {
			_, err := parseReasons(content, len(items))
			return err
		})
		if err == nil {
			reasons, _ := parseReasons(content, len(items))
			return ReasonsResult{Reasons: reasons, Source: SourceLLM}
		}
		detail = err.Error()
		g.logger.WithContext(ctx).Debug().Err(err).Msg("Using heuristic reasons")
	}

	return ReasonsResult{Reasons: HeuristicReasons(items), Source: SourceHeuristic, Err: detail}
}

func parseReasons(content string, want int) ([]string, error) {
	var payload struct {
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("parse reasons: %w", err)
	}
	if len(payload.Reasons) != want {
		return nil, fmt.Errorf("got %d reasons for %d recommendations", len(payload.Reasons), want)
	}
	return payload.Reasons, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// HeuristicReasons builds each reason from up to three present signals.
func HeuristicReasons(items []ReasonItem) []string {
	reasons := make([]string, 0, len(items))
	for _, item := range items {
		var parts []string
		if item.Rating != nil {
			parts = append(parts, fmt.Sprintf("High rating (%.1f)", *item.Rating))
		}
		if item.Persona != "" {
			parts = append(parts, fmt.Sprintf("popular for %s gifts", item.Persona))
		}
		if item.Delivery != "" {
			parts = append(parts, fmt.Sprintf("supports %s delivery", item.Delivery))
		}
		if item.Category != "" {
			parts = append(parts, fmt.Sprintf("strong %s choice", item.Category))
		}
		if item.Price != nil {
			parts = append(parts, fmt.Sprintf("fits around %.2f", *item.Price))
		}

		if len(parts) == 0 {
			reasons = append(reasons, DefaultReasonText)
			continue
		}
		if len(parts) > 3 {
			parts = parts[:3]
		}
		reasons = append(reasons, capitalize(strings.Join(parts, ", "))+".")
	}
	return reasons
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
}

// PlanDetails is the context summarised for an experience plan.
type PlanDetails struct {
	Budget        float64 `json:"budget"`
	Persona       string  `json:"persona"`
	DeliverySpeed string  `json:"delivery_speed"`
	Region        string  `json:"region"`
	TopGift       string  `json:"top_gift,omitempty"`
}

// Summary writes a short plan summary.
func (g *Generator) Summary(ctx context.Context, d PlanDetails) Result {
	var detail string
	if g.RemoteEnabled() {
		payload, _ := json.Marshal(d)
		messages := []Message{
			{Role: "system", Content: "You are a friendly planner. Write a short, upbeat plan summary in 3 sentences."},
			{Role: "user", Content: "Plan details: " + string(payload)},
		}
		text, err := g.client.trimmed(ctx, messages, 0.4, 160)
		if err == nil {
			return Result{Text: text, Source: SourceLLM}
		}
		detail = err.Error()
	}
	return Result{Text: HeuristicSummary(d), Source: SourceHeuristic, Err: detail}
}

// HeuristicSummary is the template summary.
func HeuristicSummary(d PlanDetails) string {
	if d.TopGift == "" {
		return "Pick a gift aligned to the persona, confirm availability, then lock in the " +
			"delivery window and personalize the message."
	}
	return fmt.Sprintf("Start with %s as a %s favorite, then confirm inventory and "+
		"schedule %s delivery for %s. Add a personal note and a "+
		"simple follow-up touchpoint after delivery.", d.TopGift, d.Persona, d.DeliverySpeed, d.Region)
}

type letterCustomer struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	City              string `json:"city"`
	StateProvince     string `json:"state_province"`
	CountryCode       string `json:"country_code"`
	AgeBand           string `json:"age_band"`
	LoyaltyTier       string `json:"loyalty_tier"`
	PreferredLanguage string `json:"preferred_language"`
	ConsentMarketing  string `json:"consent_marketing"`
}

type letterGift struct {
	ProductName string   `json:"product_name"`
	Persona     string   `json:"gift_persona"`
	Delivery    string   `json:"delivery_speed"`
	Rating      *float64 `json:"rating"`
}

// Letter writes a short love letter for customer, mentioning recent gifts.
// A nil customer yields the not-found sentence.
func (g *Generator) Letter(ctx context.Context, customer *storage.Customer, events []storage.GiftEvent, tone string) Result {
	if customer == nil {
		return Result{Text: CustomerNotFoundText, Source: SourceHeuristic}
	}
	if strings.TrimSpace(tone) == "" {
		tone = DefaultTone
	}

	var detail string
	if g.RemoteEnabled() {
		gifts := make([]letterGift, 0, len(events))
		for _, e := range events {
			gifts = append(gifts, letterGift{ProductName: e.ProductName, Persona: e.Persona, Delivery: e.Delivery, Rating: e.Rating})
		}
		payload, _ := json.Marshal(struct {
			Customer    letterCustomer `json:"customer"`
			RecentGifts []letterGift   `json:"recent_gifts"`
			Tone        string         `json:"tone"`
		}{
			Customer: letterCustomer{
				FirstName:         customer.FirstName,
				LastName:          customer.LastName,
				City:              customer.City,
				StateProvince:     customer.StateProvince,
				CountryCode:       customer.CountryCode,
				AgeBand:           customer.AgeBand,
				LoyaltyTier:       customer.LoyaltyTier,
				PreferredLanguage: customer.PreferredLanguage,
				ConsentMarketing:  customer.ConsentMarketing,
			},
			RecentGifts: gifts,
			Tone:        tone,
		})

		messages := []Message{
			{Role: "system", Content: "You write short, warm love letters for a chocolate brand. " +
				"Keep it professional, light, and a bit funny. 120-160 words. " +
				"Write in English. " +
				"Must include the customer's first name, city/country, loyalty tier, " +
				"and mention 1-2 recent products if available."},
			{Role: "user", Content: "Write the letter using this context: " + string(payload)},
		}
		text, err := g.client.trimmed(ctx, messages, 0.6, 260)
		if err == nil {
			return Result{Text: text, Source: g.client.Provider().Source()}
		}
		detail = err.Error()
	}

	return Result{Text: HeuristicLetter(customer, events), Source: SourceHeuristic, Err: detail}
}

// HeuristicLetter is the five paragraph template letter.
func HeuristicLetter(customer *storage.Customer, events []storage.GiftEvent) string {
	name := customer.FirstName
	if name == "" {
		name = "there"
	}
	tier := customer.LoyaltyTier
	if tier == "" {
		tier = "loyal"
	}
	location := joinNonEmpty(", ", customer.City, customer.StateProvince, customer.CountryCode)

	var persona, delivery string
	var recent []string
	if len(events) > 0 {
		persona = events[0].Persona
		delivery = events[0].Delivery
		for _, e := range events {
			if e.ProductName != "" {
				recent = append(recent, e.ProductName)
			}
		}
	}

	vibe := "We picked something thoughtful to match your gifting vibe"
	if persona != "" {
		vibe += " for " + persona + " moments"
	}
	if delivery != "" {
		vibe += " with " + delivery + " delivery"
	}
	vibe += "."
	if len(recent) > 0 {
		if len(recent) > 2 {
			recent = recent[:2]
		}
		vibe += " Recent favorites include " + strings.Join(recent, ", ") + "."
	}

	return strings.Join([]string{
		"Dear " + name + ",",
		fmt.Sprintf("From %s to the sweetest moments, we noticed your %s love style.", location, tier),
		vibe,
		"May your Valentine be rich in smiles, surprises, and chocolate.",
		"With affection,\nCupid Chocolate Company",
	}, "\n\n")
}

// salesDigest is the trimmed sales context sent with chat questions.
type salesDigest struct {
	Summary       storage.SalesSummary `json:"summary"`
	TopCategories []storage.RevenueRow `json:"top_categories"`
	TopProducts   []storage.RevenueRow `json:"top_products"`
	Channels      []storage.RevenueRow `json:"channels"`
	TopCountries  []storage.RevenueRow `json:"top_countries"`
	Monthly       []storage.RevenueRow `json:"monthly"`
	Promotions    []storage.RevenueRow `json:"promotions"`
	Loyalty       []storage.RevenueRow `json:"loyalty"`
}

func digest(sc *storage.SalesContext) salesDigest {
	if sc == nil {
		return salesDigest{}
	}
	return salesDigest{
		Summary:       sc.Summary,
		TopCategories: head(sc.ByCategory, 5),
		TopProducts:   head(sc.TopProducts, 5),
		Channels:      sc.ByChannel,
		TopCountries:  head(sc.ByCountry, 5),
		Monthly:       head(sc.ByMonth, 12),
		Promotions:    head(sc.ByPromotion, 5),
		Loyalty:       sc.ByLoyalty,
	}
}

func head(rows []storage.RevenueRow, n int) []storage.RevenueRow {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

// Chat answers a sales question from the aggregates in sc.
func (g *Generator) Chat(ctx context.Context, question string, sc *storage.SalesContext) Result {
	if strings.TrimSpace(question) == "" {
		return Result{Text: EmptyQuestionText, Source: SourceHeuristic}
	}
	d := digest(sc)

	var detail string
	if g.RemoteEnabled() {
		payload, _ := json.Marshal(d)
		messages := []Message{
			{Role: "system", Content: "You are a sales analyst. Use only the provided data to answer. " +
				"Be concise, English only. If data is missing, say what is missing."},
			{Role: "user", Content: "Question: " + question + "\nData: " + string(payload)},
		}
		text, err := g.client.trimmed(ctx, messages, 0.2, 260)
		if err == nil {
			return Result{Text: text, Source: g.client.Provider().Source()}
		}
		detail = err.Error()
	}

	return Result{Text: heuristicAnswer(question, d), Source: SourceHeuristic, Err: detail}
}

// HeuristicAnswer routes question by keyword over the sales aggregates.
func HeuristicAnswer(question string, sc *storage.SalesContext) string {
	return heuristicAnswer(question, digest(sc))
}

func heuristicAnswer(question string, d salesDigest) string {
	q := strings.ToLower(question)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	if has("product", "sku") && len(d.TopProducts) > 0 {
		return "Top products by revenue: " + listRevenue(d.TopProducts) + "."
	}
	if has("category") && len(d.TopCategories) > 0 {
		return "Top categories by revenue: " + listRevenue(d.TopCategories) + "."
	}
	if has("channel") && len(d.Channels) > 0 {
		return "Revenue by channel: " + listRevenue(d.Channels) + "."
	}
	if has("country", "region") && len(d.TopCountries) > 0 {
		return "Top countries by revenue: " + listRevenue(d.TopCountries) + "."
	}
	if has("month", "trend") && len(d.Monthly) > 0 {
		last := d.Monthly[len(d.Monthly)-1]
		return fmt.Sprintf("Latest month revenue: %.2f across %d orders.", last.Revenue, last.Orders)
	}
	return fmt.Sprintf("Overall revenue is %.2f with profit %.2f.", d.Summary.Revenue, d.Summary.Profit)
}

func listRevenue(rows []storage.RevenueRow) string {
	items := make([]string, len(rows))
	for i, r := range rows {
		items[i] = fmt.Sprintf("%s (%.2f)", r.Key, r.Revenue)
	}
	return strings.Join(items, ", ")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
