package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mailhaven/core/internal/database/models"
)

func TestParseCategoryResponsePlainJSON(t *testing.T) {
	response := `{"purpose":"Work","senderType":"Company","contentType":"Media-rich","priority":"High","actionRequired":"Follow-up Needed","topicDepartment":"Finance","timeSensitivity":"Time-sensitive"}`

	record, err := ParseCategoryResponse(response)
	if err != nil {
		t.Fatalf("ParseCategoryResponse returned error: %v", err)
	}
	if record.Purpose != models.PurposeWork {
		t.Errorf("purpose = %q, want Work", record.Purpose)
	}
	if record.TopicDepartment != "Finance" {
		t.Errorf("topicDepartment = %q, want Finance", record.TopicDepartment)
	}
	if record.TimeSensitivity != models.TimeSensitive {
		t.Errorf("timeSensitivity = %q, want Time-sensitive", record.TimeSensitivity)
	}
}

func TestParseCategoryResponseMarkdownFences(t *testing.T) {
	response := "Here is the classification:\n```json\n{\"purpose\":\"Promotional\",\"senderType\":\"Automated\",\"contentType\":\"Text-only\",\"priority\":\"Low\",\"actionRequired\":\"Informational Only\",\"topicDepartment\":\"\",\"timeSensitivity\":\"Evergreen\"}\n```\nLet me know if you need anything else."

	record, err := ParseCategoryResponse(response)
	if err != nil {
		t.Fatalf("ParseCategoryResponse returned error: %v", err)
	}
	if record.Purpose != models.PurposePromotional {
		t.Errorf("purpose = %q, want Promotional", record.Purpose)
	}
	if record.Priority != models.PriorityLow {
		t.Errorf("priority = %q, want Low", record.Priority)
	}
}

func TestParseCategoryResponseNoJSON(t *testing.T) {
	record, err := ParseCategoryResponse("I cannot classify this email.")
	if !errors.Is(err, ErrClassificationFailed) {
		t.Fatalf("expected ErrClassificationFailed, got %v", err)
	}
	if record != models.DefaultCategories() {
		t.Errorf("failed parse should return default categories, got %+v", record)
	}
}

// Property: field values outside their enum are coerced to that field's
// default individually; the other fields keep their parsed values.
func TestProperty_InvalidFieldValuesCoercedIndividually(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("per_field_coercion", prop.ForAll(
		func(badPurpose, department string) bool {
			if models.Purpose(badPurpose).IsValid() {
				return true
			}
			payload, _ := json.Marshal(map[string]string{
				"purpose":         badPurpose,
				"senderType":      "Company",
				"contentType":     "Interactive",
				"priority":        "Urgent",
				"actionRequired":  "Immediate Action",
				"topicDepartment": department,
				"timeSensitivity": "Time-sensitive",
			})

			record, err := ParseCategoryResponse(string(payload))
			if err != nil {
				return false
			}

			// The bad field falls back, the valid fields survive
			return record.Purpose == models.PurposePersonal &&
				record.SenderType == models.SenderCompany &&
				record.ContentType == models.ContentInteractive &&
				record.Priority == models.PriorityUrgent &&
				record.ActionRequired == models.ActionImmediate &&
				record.TopicDepartment == department &&
				record.TimeSensitivity == models.TimeSensitive
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Property: Normalize is idempotent and always produces a record whose enum
// fields are valid.
func TestProperty_NormalizeProducesValidRecords(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize_valid_and_idempotent", prop.ForAll(
		func(p, s, c string) bool {
			record := models.CategoryRecord{
				Purpose:     models.Purpose(p),
				SenderType:  models.SenderType(s),
				ContentType: models.ContentType(c),
			}
			once := record.Normalize()
			twice := once.Normalize()

			return once == twice &&
				once.Purpose.IsValid() &&
				once.SenderType.IsValid() &&
				once.ContentType.IsValid() &&
				once.Priority.IsValid() &&
				once.ActionRequired.IsValid() &&
				once.TimeSensitivity.IsValid()
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestBuildCategoryPromptIncludesBody(t *testing.T) {
	body := "Quarterly report attached, please review by Friday."
	prompt := BuildCategoryPrompt(body)

	if !strings.Contains(prompt, body) {
		t.Error("prompt should embed the message body")
	}
	for _, key := range []string{"purpose", "senderType", "contentType", "priority", "actionRequired", "topicDepartment", "timeSensitivity"} {
		if !strings.Contains(prompt, key) {
			t.Errorf("prompt should name the %s field", key)
		}
	}
}

func TestTruncateBodyRuneBoundary(t *testing.T) {
	body := strings.Repeat("日本語のメール本文", 20)
	truncated := truncateBody(body, 50)

	if !utf8.ValidString(truncated) {
		t.Errorf("truncation must not split a rune: %q", truncated)
	}
	if got := len([]rune(truncated)); got != 50 {
		t.Errorf("truncated length = %d runes, want 50", got)
	}
}

func TestTruncateBodyShortInputUnchanged(t *testing.T) {
	if got := truncateBody("short", 50); got != "short" {
		t.Errorf("short body should pass through, got %q", got)
	}
}

func TestClassifyUnconfiguredClient(t *testing.T) {
	client := NewClient()

	record, err := client.Classify(context.Background(), "hello")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if record != models.DefaultCategories() {
		t.Errorf("unconfigured classify should return defaults, got %+v", record)
	}
}
