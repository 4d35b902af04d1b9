package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("analyzed %d dives")
	if got != "analyzed %d dives" {
		t.Errorf("custom logger saw %q", got)
	}

	// nil installs a no-op, not a nil func
	SetLogger(nil)
	Logf("dropped")
	if got != "analyzed %d dives" {
		t.Error("no-op logger still forwarded")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
