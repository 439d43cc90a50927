package canonical

import (
	"testing"
)

func TestJSONBytes_SortsKeysAndStripsWhitespace(t *testing.T) {
	input := []byte(`{
		"zeta": 1,
		"alpha": {"b": true, "a": null},
		"mid": [3, 2, 1]
	}`)
	got, err := JSONBytes(input)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"alpha":{"a":null,"b":true},"mid":[3,2,1],"zeta":1}`
	if string(got) != want {
		t.Fatalf("canonical mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestJSONBytes_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"result":"pass","score":92.5}`)
	b := []byte(`{"score":92.5,"result":"pass"}`)
	ca, err := JSONBytes(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	cb, err := JSONBytes(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("canonical forms differ: %s vs %s", ca, cb)
	}
}

func TestJSONBytes_NumberForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"n": 92.5}`, `{"n":92.5}`},
		{`{"n": 1.0}`, `{"n":1}`},
		{`{"n": 0}`, `{"n":0}`},
		{`{"n": -0.25}`, `{"n":-0.25}`},
		{`{"n": 1e21}`, `{"n":1e+21}`},
		{`{"n": 1e-7}`, `{"n":1e-7}`},
		{`{"n": 100000000000000000000}`, `{"n":100000000000000000000}`},
	}
	for _, tc := range cases {
		got, err := JSONBytes([]byte(tc.in))
		if err != nil {
			t.Fatalf("canonicalize %s: %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("number form mismatch for %s: got %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestJSONBytes_ControlCharacterEscapes(t *testing.T) {
	got, err := JSONBytes([]byte("{\"s\": \"a\\tb\\nc\\u0001d\"}"))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"s":"a\tb\ncd"}`
	if string(got) != want {
		t.Fatalf("escape mismatch: got %s want %s", got, want)
	}
}

func TestJSONBytes_RejectsTrailingData(t *testing.T) {
	if _, err := JSONBytes([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestJSON_RejectsNonFiniteNumbers(t *testing.T) {
	if _, err := JSON(map[string]any{"bad": mustInf()}); err == nil {
		t.Fatal("expected non-finite number to be rejected")
	}
}

func mustInf() float64 {
	f := 1.0
	zero := 0.0
	return f / zero
}

func TestProofOptions_StableForStruct(t *testing.T) {
	type opts struct {
		Type               string `json:"type"`
		Cryptosuite        string `json:"cryptosuite"`
		Created            string `json:"created"`
		VerificationMethod string `json:"verificationMethod"`
		ProofPurpose       string `json:"proofPurpose"`
	}
	o := opts{
		Type:               "DataIntegrityProof",
		Cryptosuite:        "eddsa-rdfc-2022",
		Created:            "2026-01-02T03:04:05Z",
		VerificationMethod: "did:web:example#key-1",
		ProofPurpose:       "assertionMethod",
	}
	first, err := ProofOptions(o)
	if err != nil {
		t.Fatalf("proof options: %v", err)
	}
	second, err := ProofOptions(o)
	if err != nil {
		t.Fatalf("proof options: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("proof options canonicalization not deterministic")
	}
	want := `{"created":"2026-01-02T03:04:05Z","cryptosuite":"eddsa-rdfc-2022","proofPurpose":"assertionMethod","type":"DataIntegrityProof","verificationMethod":"did:web:example#key-1"}`
	if string(first) != want {
		t.Fatalf("proof options mismatch:\n got %s\nwant %s", first, want)
	}
}
