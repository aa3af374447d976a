package snap

import "testing"

func TestParseRejectsNonPayloads(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank", "   \n\t "},
		{"no braces", "pure dramatic narration, no JSON at all"},
		{"unbalanced", `prefix {"Status": "SNAP", "DoomScore": 12`},
		{"invalid json", `{"Status": "SNAP", DoomScore: }`},
		{"wrong status", `{"Status": "CALM", "DoomScore": 50}`},
		{"missing status", `{"DoomScore": 50, "Summary": "x"}`},
		{"status wrong case", `{"Status": "snap", "DoomScore": 50}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.raw); got != nil {
				t.Errorf("Parse(%q) = %+v, want nil", tc.raw, got)
			}
		})
	}
}

func TestParseValidPayload(t *testing.T) {
	raw := `{"Status":"SNAP","DoomScore":87,"Summary":"The oven won.","RealityCheck":"It is off."}`

	got := Parse(raw)
	if got == nil {
		t.Fatal("Parse returned nil for a valid payload")
	}
	if got.DoomScore != 87 {
		t.Errorf("DoomScore = %d, want 87", got.DoomScore)
	}
	if got.Summary != "The oven won." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.RealityCheck != "It is off." {
		t.Errorf("RealityCheck = %q", got.RealityCheck)
	}
}

func TestParseIgnoresSurroundingNoise(t *testing.T) {
	raw := "Here is your receipt:\n```json\n" +
		`{"Status":"SNAP","DoomScore":42,"Summary":"s","RealityCheck":"r"}` +
		"\n```\nShare wisely."

	got := Parse(raw)
	if got == nil {
		t.Fatal("Parse returned nil for a wrapped payload")
	}
	if got.DoomScore != 42 {
		t.Errorf("DoomScore = %d, want 42", got.DoomScore)
	}
}

func TestParseHandlesBracesInsideStrings(t *testing.T) {
	raw := `{"Status":"SNAP","DoomScore":10,"Summary":"an {unmatched brace","RealityCheck":"ok"}`

	got := Parse(raw)
	if got == nil {
		t.Fatal("Parse returned nil when a string contained a brace")
	}
	if got.Summary != "an {unmatched brace" {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestParseDoomScoreCoercion(t *testing.T) {
	cases := []struct {
		name  string
		score string
		want  int
	}{
		{"above range", `150`, 100},
		{"below range", `-5`, 0},
		{"numeric string", `"87"`, 87},
		{"non-numeric string", `"abc"`, 0},
		{"absent", ``, 0},
		{"null", `null`, 0},
		{"float truncates", `61.9`, 61},
		{"nan string", `"NaN"`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"Status":"SNAP"`
			if tc.score != "" {
				raw += `,"DoomScore":` + tc.score
			}
			raw += `}`

			got := Parse(raw)
			if got == nil {
				t.Fatalf("Parse(%q) returned nil", raw)
			}
			if got.DoomScore != tc.want {
				t.Errorf("DoomScore = %d, want %d", got.DoomScore, tc.want)
			}
		})
	}
}

func TestParseDefaultsMissingTextFields(t *testing.T) {
	got := Parse(`{"Status":"SNAP","DoomScore":5}`)
	if got == nil {
		t.Fatal("Parse returned nil")
	}
	if got.Summary != "" || got.RealityCheck != "" {
		t.Errorf("expected empty text fields, got %+v", got)
	}
}
