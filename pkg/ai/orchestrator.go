package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"boathub/pkg/domain"
)

// SettingsSource resolves admin-configurable prompt/model overrides.
// A missing key means "use the built-in default", never an error.
type SettingsSource interface {
	Setting(ctx context.Context, key domain.SettingKey) (string, bool)
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func(ctx context.Context, key domain.SettingKey) (string, bool)

func (f SettingsFunc) Setting(ctx context.Context, key domain.SettingKey) (string, bool) {
	return f(ctx, key)
}

// ExtractedData holds structured fields pulled from a raw description.
type ExtractedData struct {
	Price        int    `json:"price,omitempty"`
	Location     string `json:"location,omitempty"`
	Year         int    `json:"year,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	BoatType     string `json:"boatType,omitempty"`
	Length       string `json:"length,omitempty"`
}

// ValidationResult is the outcome of checking a raw description.
type ValidationResult struct {
	IsValid       bool           `json:"isValid"`
	MissingFields []string       `json:"missingFields"`
	Extracted     *ExtractedData `json:"extractedData"`
}

// ListingInput is what the seller provided for listing generation.
type ListingInput struct {
	RawDescription string
	Price          int
	Year           int
	Location       string
	Manufacturer   string
	Model          string
	Length         string
}

// ListingDraft is the generated listing content.
type ListingDraft struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	BoatType     string `json:"boatType,omitempty"`
	Length       string `json:"length,omitempty"`
}

// EnrichedDraft is a draft extended with web-search verification output.
type EnrichedDraft struct {
	ListingDraft
	Sources  []string `json:"sources"`
	Warnings []string `json:"warnings"`
}

const (
	minTitleLen       = 5
	minDescriptionLen = 30
)

// validationFallbackFields is returned when the model reply cannot be parsed
// at all: callers treat it as "needs more input", not as a hard failure.
var validationFallbackFields = []string{"price", "location", "description"}

// Orchestrator turns unstructured seller text into structured listing fields
// through a hosted language model, enforcing the output schema and degrading
// to deterministic defaults when the model misbehaves.
type Orchestrator struct {
	gen      TextGenerator
	search   SearchTextGenerator
	settings SettingsSource
	timeout  time.Duration
}

// NewOrchestrator wires the model providers and the settings source.
// search may be nil when web-search enrichment is not configured.
func NewOrchestrator(gen TextGenerator, search SearchTextGenerator, settings SettingsSource, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{gen: gen, search: search, settings: settings, timeout: timeout}
}

func (o *Orchestrator) setting(ctx context.Context, key domain.SettingKey, fallback string) string {
	if o.settings != nil {
		if v, ok := o.settings.Setting(ctx, key); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fallback
}

// ValidateDescription asks the model whether a raw description is complete
// enough to publish. Malformed model output degrades to a safe "needs more
// input" result and never becomes an error.
func (o *Orchestrator) ValidateDescription(ctx context.Context, text string) ValidationResult {
	fallback := ValidationResult{IsValid: false, MissingFields: validationFallbackFields}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	raw, err := o.gen.GenerateText(ctx, Request{
		Model:        o.setting(ctx, domain.SettingGenerationModel, ""),
		SystemPrompt: o.setting(ctx, domain.SettingValidationPrompt, defaultValidationPrompt),
		UserPrompt:   text,
	})
	if err != nil {
		return fallback
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return fallback
	}
	if _, present := obj["isValid"]; !present {
		return fallback
	}
	result := ValidationResult{
		IsValid:       asBool(obj["isValid"]),
		MissingFields: asStringList(obj["missingFields"]),
	}
	if data, ok := obj["extractedData"].(map[string]any); ok {
		result.Extracted = &ExtractedData{
			Price:        asPrice(data["price"]),
			Location:     asString(data["location"]),
			Year:         asInt(data["year"]),
			Manufacturer: asString(data["manufacturer"]),
			Model:        asString(data["model"]),
			BoatType:     asString(data["boatType"]),
			Length:       asLength(data["length"]),
		}
	}
	if result.IsValid && result.Extracted == nil {
		// A "valid" verdict without extracted data is not actionable.
		return fallback
	}
	if !result.IsValid && len(result.MissingFields) == 0 {
		result.MissingFields = validationFallbackFields
	}
	return result
}

// GenerateListing produces listing content from seller input. A schema-invalid
// reply is repaired into a best-effort draft; an error is returned only when
// the model call itself fails or returns nothing.
func (o *Orchestrator) GenerateListing(ctx context.Context, input ListingInput) (ListingDraft, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	raw, err := o.gen.GenerateText(ctx, Request{
		Model:        o.setting(ctx, domain.SettingGenerationModel, ""),
		SystemPrompt: o.setting(ctx, domain.SettingGenerationPrompt, defaultGenerationPrompt),
		UserPrompt:   formatListingInput(input),
	})
	if err != nil {
		return ListingDraft{}, fmt.Errorf("generate listing: %w", err)
	}

	draft := ListingDraft{}
	if obj, decErr := decodeObject(raw); decErr == nil {
		draft = ListingDraft{
			Title:        asString(obj["title"]),
			Description:  asString(obj["description"]),
			Manufacturer: asString(obj["manufacturer"]),
			Model:        asString(obj["model"]),
			BoatType:     asString(obj["boatType"]),
			Length:       asLength(obj["length"]),
		}
	}
	return repairDraft(draft, input), nil
}

// InterpretSearchQuery extracts structured search parameters from a natural
// language query. Any failure degrades to treating the whole query as the
// keyword: search never comes back empty-handed because extraction failed.
func (o *Orchestrator) InterpretSearchQuery(ctx context.Context, query string) domain.SearchFilter {
	fallback := domain.SearchFilter{Query: strings.TrimSpace(query)}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	raw, err := o.gen.GenerateText(ctx, Request{
		Model:        o.setting(ctx, domain.SettingGenerationModel, ""),
		SystemPrompt: o.setting(ctx, domain.SettingSearchPrompt, defaultSearchPrompt),
		UserPrompt:   query,
	})
	if err != nil {
		return fallback
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return fallback
	}
	filter := domain.SearchFilter{
		Query:    asString(obj["query"]),
		MinPrice: asPrice(obj["minPrice"]),
		MaxPrice: asPrice(obj["maxPrice"]),
		Year:     asInt(obj["year"]),
		BoatType: asString(obj["boatType"]),
		Location: asString(obj["location"]),
	}
	if filter.IsEmpty() {
		return fallback
	}
	return filter
}

// GenerateListingWithWebSearch produces a draft and, in parallel, verifies
// manufacturer specs through a web-search-enabled model call. Enrichment
// failures degrade to the plain draft with a warning; only a total generation
// failure is an error.
func (o *Orchestrator) GenerateListingWithWebSearch(ctx context.Context, input ListingInput) (EnrichedDraft, error) {
	if o.search == nil {
		draft, err := o.GenerateListing(ctx, input)
		if err != nil {
			return EnrichedDraft{}, err
		}
		return EnrichedDraft{
			ListingDraft: draft,
			Warnings:     []string{"web search unavailable; specifications not verified"},
		}, nil
	}

	var draft ListingDraft
	var enriched SearchResult
	var enrichErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		draft, err = o.GenerateListing(gctx, input)
		return err
	})
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.timeout)
		defer cancel()
		enriched, enrichErr = o.search.GenerateWithSearch(sctx, Request{
			Model:        o.setting(sctx, domain.SettingWebSearchModel, ""),
			SystemPrompt: o.setting(sctx, domain.SettingWebSearchPrompt, defaultWebSearchPrompt),
			UserPrompt:   formatListingInput(input),
		})
		// Enrichment is best-effort: its failure must not cancel generation.
		return nil
	})
	if err := g.Wait(); err != nil {
		return EnrichedDraft{}, err
	}

	out := EnrichedDraft{ListingDraft: draft}
	if enrichErr != nil {
		out.Warnings = append(out.Warnings, "specification lookup failed; fields not verified")
		return out, nil
	}

	obj, err := decodeObject(enriched.Text)
	if err != nil {
		out.Warnings = append(out.Warnings, "specification lookup returned no usable data")
		return out, nil
	}
	verified := ListingDraft{
		Title:        asString(obj["title"]),
		Description:  asString(obj["description"]),
		Manufacturer: asString(obj["manufacturer"]),
		Model:        asString(obj["model"]),
		BoatType:     asString(obj["boatType"]),
		Length:       asLength(obj["length"]),
	}
	out.ListingDraft = mergeDrafts(draft, verified)
	out.ListingDraft = repairDraft(out.ListingDraft, input)
	out.Sources = enriched.Sources
	out.Warnings = append(out.Warnings, asStringList(obj["warnings"])...)
	return out, nil
}

// repairDraft fills holes in a partially-parsed draft from the seller input
// so the result always carries a usable title and description.
func repairDraft(draft ListingDraft, input ListingInput) ListingDraft {
	if len(draft.Title) < minTitleLen {
		draft.Title = synthesizeTitle(input)
	}
	if len(draft.Description) < minDescriptionLen {
		if desc := strings.TrimSpace(input.RawDescription); desc != "" {
			draft.Description = desc
		} else if draft.Description == "" {
			draft.Description = draft.Title
		}
	}
	if draft.Manufacturer == "" {
		draft.Manufacturer = input.Manufacturer
	}
	if draft.Model == "" {
		draft.Model = input.Model
	}
	if draft.Length == "" {
		draft.Length = asLength(input.Length)
	}
	return draft
}

func synthesizeTitle(input ListingInput) string {
	parts := make([]string, 0, 3)
	if input.Manufacturer != "" {
		parts = append(parts, input.Manufacturer)
	}
	if input.Model != "" {
		parts = append(parts, input.Model)
	}
	if input.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d г.", input.Year))
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	raw := strings.TrimSpace(input.RawDescription)
	if raw == "" {
		return "Лодка"
	}
	runes := []rune(raw)
	if len(runes) > 60 {
		return strings.TrimSpace(string(runes[:60])) + "…"
	}
	return raw
}

// mergeDrafts prefers verified fields but keeps generated prose when the
// verifier left a field empty.
func mergeDrafts(generated, verified ListingDraft) ListingDraft {
	out := generated
	if len(verified.Title) >= minTitleLen {
		out.Title = verified.Title
	}
	if len(verified.Description) >= minDescriptionLen {
		out.Description = verified.Description
	}
	if verified.Manufacturer != "" {
		out.Manufacturer = verified.Manufacturer
	}
	if verified.Model != "" {
		out.Model = verified.Model
	}
	if verified.BoatType != "" {
		out.BoatType = verified.BoatType
	}
	if verified.Length != "" {
		out.Length = verified.Length
	}
	return out
}

func formatListingInput(input ListingInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Raw description:\n%s\n\nKnown attributes:\n", strings.TrimSpace(input.RawDescription))
	if input.Price > 0 {
		fmt.Fprintf(&b, "price: %d RUB\n", input.Price)
	}
	if input.Year > 0 {
		fmt.Fprintf(&b, "year: %d\n", input.Year)
	}
	if input.Location != "" {
		fmt.Fprintf(&b, "location: %s\n", input.Location)
	}
	if input.Manufacturer != "" {
		fmt.Fprintf(&b, "manufacturer: %s\n", input.Manufacturer)
	}
	if input.Model != "" {
		fmt.Fprintf(&b, "model: %s\n", input.Model)
	}
	if input.Length != "" {
		fmt.Fprintf(&b, "length: %s m\n", input.Length)
	}
	return b.String()
}
