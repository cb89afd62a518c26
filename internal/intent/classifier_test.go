package intent

import (
	"reflect"
	"testing"
)

func TestClassify_RuleOrdering(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		text string
		kind Kind
		conf float64
	}{
		{"fraud keyword", "I noticed a suspicious charge on my card", KindFraud, 0.95},
		{"fraud co-occurrence", "can you check my recent activity", KindFraud, 0.95},
		{"verify plus transaction is fraud", "please verify this transaction for me", KindFraud, 0.95},
		{"advice", "how to save more money each month", KindAdvice, 0.9},
		{"advice invest", "should I invest in index funds", KindAdvice, 0.9},
		{"advice beats transfer wording", "transfer $100 to savings", KindAdvice, 0.9},
		{"history show recent", "show my recent purchases", KindTransaction, 0.95},
		{"history literal", "transaction history please", KindTransaction, 0.95},
		{"bill payment", "pay $75 for Internet Provider", KindTransaction, 0.95},
		{"high value transfer", "transfer $1500 to John", KindTransaction, 0.95},
		{"generic transfer", "transfer 100 to John", KindTransaction, 0.95},
		{"move money", "move some funds around", KindTransaction, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Kind != tt.kind {
				t.Errorf("Classify(%q).Kind = %s, want %s", tt.text, got.Kind, tt.kind)
			}
			if got.Confidence != tt.conf {
				t.Errorf("Classify(%q).Confidence = %f, want %f", tt.text, got.Confidence, tt.conf)
			}
		})
	}
}

func TestClassify_FraudOverrideBeatsFallback(t *testing.T) {
	c := NewClassifier()

	// "security" appears in both the fraud override list and the verification
	// fallback pattern; the override must win.
	got := c.Classify("security")
	if got.Kind != KindFraud {
		t.Errorf("expected fraud override to win, got %s", got.Kind)
	}
	if got.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", got.Confidence)
	}
}

func TestClassify_FallbackScoring(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("what is my balance")
	if got.Kind != KindInquiry {
		t.Errorf("expected inquiry, got %s", got.Kind)
	}
	if got.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %f", got.Confidence)
	}
}

func TestClassify_DefaultInquiry(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("xyzzy")
	if got.Kind != KindInquiry {
		t.Errorf("expected default inquiry, got %s", got.Kind)
	}
	if got.Confidence != 0.5 {
		t.Errorf("expected default confidence 0.5, got %f", got.Confidence)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier()

	const text = "show my account spending patterns"
	first := c.Classify(text)
	for i := 0; i < 50; i++ {
		if got := c.Classify(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestClassify_BillPaymentNeedsBothFields(t *testing.T) {
	c := NewClassifier()

	// An amount without a resolvable payee must not trigger the bill rule.
	got := c.Classify("payment of $75")
	if got.Kind == KindTransaction && got.Confidence == 0.95 {
		t.Errorf("bill rule fired without a payee: %+v", got)
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		text   string
		amount float64
		ok     bool
	}{
		{"transfer $100 to John", 100, true},
		{"pay $75.50 to Internet Provider", 75.50, true},
		{"transfer 1500 to savings", 1500, true},
		{"no amounts here", 0, false},
	}
	for _, tt := range tests {
		amount, ok := ExtractAmount(tt.text)
		if ok != tt.ok || amount != tt.amount {
			t.Errorf("ExtractAmount(%q) = (%f, %v), want (%f, %v)",
				tt.text, amount, ok, tt.amount, tt.ok)
		}
	}
}

func TestExtractPayee(t *testing.T) {
	tests := []struct {
		text  string
		payee string
		ok    bool
	}{
		{"pay $75 to Internet Provider", "Internet Provider", true},
		{"pay my electricity bill $50", "electricity", true},
		{"$20 electricity bill", "electricity", true},
		{"hello", "", false},
	}
	for _, tt := range tests {
		payee, ok := ExtractPayee(tt.text)
		if ok != tt.ok || payee != tt.payee {
			t.Errorf("ExtractPayee(%q) = (%q, %v), want (%q, %v)",
				tt.text, payee, ok, tt.payee, tt.ok)
		}
	}
}

func TestExtractRecipient(t *testing.T) {
	if r, ok := ExtractRecipient("transfer $100 to John"); !ok || r != "John" {
		t.Errorf("ExtractRecipient = (%q, %v), want (John, true)", r, ok)
	}
	if _, ok := ExtractRecipient("check balance"); ok {
		t.Error("expected no recipient")
	}
}
