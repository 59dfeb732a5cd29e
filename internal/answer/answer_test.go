package answer_test

import (
	"testing"

	"github.com/p-n-ai/statquiz/internal/answer"
)

func TestNewSet_OrdersBySeasonDescending(t *testing.T) {
	input := []answer.Record{
		{Player: "A", Year: "2019", Team: "2019-GSW"},
		{Player: "B", Year: "2023", Team: "2023-BOS"},
		{Player: "C", Year: "2019", Team: "2019-LAL"},
		{Player: "D", Year: "2021", Team: "2021-MIL"},
	}

	set := answer.NewSet(input)

	want := []string{"B", "D", "A", "C"}
	if set.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", set.Len(), len(want))
	}
	for i, name := range want {
		if got := set.At(i).Player; got != name {
			t.Errorf("At(%d).Player = %q, want %q", i, got, name)
		}
	}

	// Input must not be reordered.
	if input[0].Player != "A" || input[1].Player != "B" {
		t.Error("NewSet() mutated its input")
	}
}

func TestNewSet_Deterministic(t *testing.T) {
	input := []answer.Record{
		{Player: "X", Year: "2010"},
		{Player: "Y", Year: "2012"},
		{Player: "Z", Year: "2012"},
	}
	a := answer.NewSet(input).Records()
	b := answer.NewSet(input).Records()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ordering differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  answer.Record
		wantErr bool
	}{
		{"valid", answer.Record{Player: "Stephen Curry", Year: "2016", Team: "2016-GSW"}, false},
		{"placeholder team", answer.Record{Player: "Kobe Bryant", Year: "2003", Team: "2003-NBA"}, false},
		{"empty player", answer.Record{Player: " ", Year: "2016", Team: "2016-GSW"}, true},
		{"short year", answer.Record{Player: "X", Year: "16", Team: "2016-GSW"}, true},
		{"bad team", answer.Record{Player: "X", Year: "2016", Team: "GSW"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTeamCode(t *testing.T) {
	tests := []struct {
		season int
		code   string
		want   string
	}{
		{2023, "den", "2023-DEN"},
		{2023, "", "2023-NBA"},
		{2005, "unknown", "2005-NBA"},
		{2021, "TOT", "2021-NBA"},
	}
	for _, tt := range tests {
		if got := answer.TeamCode(tt.season, tt.code); got != tt.want {
			t.Errorf("TeamCode(%d, %q) = %q, want %q", tt.season, tt.code, got, tt.want)
		}
	}
}
