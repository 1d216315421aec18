package suspend

import "testing"

func TestOnceTokenClaimOnce(t *testing.T) {
	var tok onceToken
	if !tok.claim() {
		t.Fatal("first claim should succeed")
	}
	if tok.claim() {
		t.Fatal("second claim should fail")
	}
}

func TestOnceTokenDiscardPreventsClaim(t *testing.T) {
	var tok onceToken
	tok.discard()
	if tok.claim() {
		t.Fatal("claim after discard should fail")
	}
	if !tok.claimed() {
		t.Fatal("expected claimed() to report true after discard")
	}
}
