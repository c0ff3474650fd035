package record

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "available to in-use", from: StatusAvailable, to: StatusInUse, want: true},
		{name: "in-use to recycling", from: StatusInUse, to: StatusRecycling, want: true},
		{name: "recycling to available", from: StatusRecycling, to: StatusAvailable, want: true},
		{name: "available to recycling", from: StatusAvailable, to: StatusRecycling, want: false},
		{name: "recycling to in-use", from: StatusRecycling, to: StatusInUse, want: false},
		{name: "maintenance to in-use", from: StatusMaintenance, to: StatusInUse, want: false},
		{name: "maintenance to available", from: StatusMaintenance, to: StatusAvailable, want: true},
		{name: "in-use to available", from: StatusInUse, to: StatusAvailable, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusAvailable, StatusInUse, StatusRecycling, StatusMaintenance} {
		if !s.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", s)
		}
	}
	if Status("destroyed").Valid() {
		t.Errorf("Status(destroyed).Valid() = true, want false")
	}
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	s.Add(StatusAvailable)
	s.Add(StatusAvailable)
	s.Add(StatusInUse)
	s.Add(StatusRecycling)
	s.Add(StatusMaintenance)

	if s.Available != 2 || s.InUse != 1 || s.Recycling != 1 || s.Maintenance != 1 {
		t.Errorf("Summary = %+v, want {2 1 1 1}", s)
	}
}
