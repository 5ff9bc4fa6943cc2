package geoip

import "testing"

func TestNew_EmptyPathDisablesLookups(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("New with empty path: %v", err)
	}
	defer r.Close()

	country, city := r.Lookup("8.8.8.8")
	if country != "" || city != "" {
		t.Fatalf("disabled resolver returned %q/%q", country, city)
	}
}

func TestNew_MissingFileDisablesLookups(t *testing.T) {
	r, err := New("/nonexistent/GeoLite2-City.mmdb")
	if err != nil {
		t.Fatalf("New with missing file: %v", err)
	}
	defer r.Close()

	if country, _ := r.Lookup("8.8.8.8"); country != "" {
		t.Fatalf("resolver without database returned country %q", country)
	}
}

func TestLookup_InvalidIP(t *testing.T) {
	r, _ := New("")
	defer r.Close()

	if country, city := r.Lookup("not-an-ip"); country != "" || city != "" {
		t.Fatalf("invalid IP returned %q/%q", country, city)
	}
}
