package session

import (
	"context"
	"fmt"
	"testing"

	"transit-tracker/internal/transit"
)

func ids(g RouteGroup) []string {
	out := make([]string, len(g.Routes))
	for i, r := range g.Routes {
		out[i] = r.ID
	}
	return out
}

func TestCatalog_GroupsAndSorts(t *testing.T) {
	f := newFixture(t, Options{})
	f.api.routes = []transit.Route{
		{ID: "151", Name: "Sheridan"},
		{ID: "22", Name: "Clark"},
		{ID: "X9", Name: "Ashland Express"},
		{ID: "9", Name: "Ashland"},
		{ID: "36", Name: "Broadway"},
	}
	f.api.vehicles["22"] = []transit.Vehicle{{RouteID: "22", VehicleID: "1"}}
	f.api.vehicles["151"] = []transit.Vehicle{{RouteID: "151", VehicleID: "2"}}

	groups, err := f.session.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(groups) != 2 || groups[0].Name != GroupActive || groups[1].Name != GroupInactive {
		t.Fatalf("groups = %+v", groups)
	}
	if got := fmt.Sprint(ids(groups[0])); got != "[22 151]" {
		t.Errorf("active = %s, want [22 151]", got)
	}
	if got := fmt.Sprint(ids(groups[1])); got != "[9 X9 36]" {
		t.Errorf("inactive = %s, want [9 X9 36]", got)
	}
	if groups[0].Routes[0].Color == "" {
		t.Error("catalog entries should carry a color")
	}
	if f.session.RouteName("22") != "Clark" {
		t.Error("route names should be remembered")
	}
}

func TestCatalog_ProbesInBatches(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 1; i <= 25; i++ {
		f.api.routes = append(f.api.routes, transit.Route{ID: fmt.Sprint(i)})
	}
	if _, err := f.session.Catalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := f.api.Calls("Vehicles"); n != 3 {
		t.Errorf("vehicle probes = %d, want 3 for 25 routes", n)
	}
}

func TestCatalog_ProbeFailureListsAllInactive(t *testing.T) {
	f := newFixture(t, Options{})
	f.api.routes = []transit.Route{{ID: "22"}, {ID: "36"}}
	f.api.vehicles["22"] = []transit.Vehicle{{RouteID: "22"}}
	f.api.failProbe = true

	groups, err := f.session.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(groups[0].Routes) != 0 || len(groups[1].Routes) != 2 {
		t.Errorf("groups = %+v, want everything inactive", groups)
	}
}

func TestRouteLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"9", "22", true},
		{"22", "146", true},
		{"146", "22", false},
		{"9", "X9", true},
		{"J14", "Express", true},
		{"Express", "J14", false},
	}
	for _, tt := range tests {
		if got := routeLess(tt.a, tt.b); got != tt.want {
			t.Errorf("routeLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
