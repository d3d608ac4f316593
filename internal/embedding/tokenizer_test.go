package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("expected CLS %d, got %d", clsTokenID, ids[0])
	}
	if ids[3] != sepTokenID {
		t.Errorf("expected SEP after two words, got %d", ids[3])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask = %v", attn)
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	if ids[3] != sepTokenID {
		t.Errorf("last token should be SEP, got %d", ids[3])
	}
}

func TestWords(t *testing.T) {
	words := Words("  What treats Diabetes?  ")
	want := []string{"what", "treats", "diabetes"}
	if len(words) != len(want) {
		t.Fatalf("got %v", words)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
	if Words("") != nil || Words(" ?! ") != nil {
		t.Error("text without words should return nil")
	}
}

func TestTokenID(t *testing.T) {
	if TokenID("abc") != TokenID("abc") {
		t.Error("token id should be deterministic")
	}
	if id := TokenID("abc"); id < 1000 || id >= vocabSize {
		t.Errorf("token id %d out of range", id)
	}
}
