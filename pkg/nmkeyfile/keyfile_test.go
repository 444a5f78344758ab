package nmkeyfile

import (
	"strings"
	"testing"
)

func TestDocument_Marshal(t *testing.T) {
	doc := New()
	doc.AddSection("connection").
		Set("id", "PIA - US East").
		Set("type", "vpn")
	doc.AddSection("ipv6").
		Set("method", "ignore")

	got := string(doc.Marshal())
	want := "[connection]\nid=PIA - US East\ntype=vpn\n\n[ipv6]\nmethod=ignore\n"
	if got != want {
		t.Errorf("Marshal mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDocument_OrderPreserved(t *testing.T) {
	doc := New()
	doc.AddSection("b").Set("z", "1").Set("a", "2")
	doc.AddSection("a").Set("k", "3")

	out := string(doc.Marshal())
	if strings.Index(out, "[b]") > strings.Index(out, "[a]") {
		t.Error("sections not in insertion order")
	}
	if strings.Index(out, "z=1") > strings.Index(out, "a=2") {
		t.Error("keys not in insertion order")
	}
}

func TestDocument_Get(t *testing.T) {
	doc := New()
	doc.AddSection("vpn").Set("remote", "us-east.example.com")

	if v, ok := doc.Get("vpn", "remote"); !ok || v != "us-east.example.com" {
		t.Errorf("Get(vpn, remote) = %q, %v", v, ok)
	}
	if _, ok := doc.Get("vpn", "missing"); ok {
		t.Error("Get found a missing key")
	}
	if _, ok := doc.Get("missing", "remote"); ok {
		t.Error("Get found a missing section")
	}
}

func TestDocument_ValuesVerbatim(t *testing.T) {
	// Region names contain spaces and the dns list ends with a semicolon;
	// both must survive serialization untouched.
	doc := New()
	doc.AddSection("ipv4").Set("dns", "209.222.18.222;209.222.18.218;")

	if !strings.Contains(string(doc.Marshal()), "dns=209.222.18.222;209.222.18.218;\n") {
		t.Error("value was not written verbatim")
	}
}
