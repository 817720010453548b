package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"producer":   RoleProducer,
		" Consumer ": RoleConsumer,
	}
	for input, want := range cases {
		got, err := ParseRole(input)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q): expected %s, got %s", input, want, got)
		}
	}

	if _, err := ParseRole("0"); err == nil {
		t.Fatalf("expected numeric role names to be rejected")
	}
	if _, err := RoleFromCode(2); err == nil {
		t.Fatalf("expected unknown role code to be rejected")
	}
}

func TestRoleJSONUsesNames(t *testing.T) {
	raw, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleConsumer})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != `{"role":"consumer"}` {
		t.Fatalf("unexpected encoding: %s", raw)
	}

	var decoded struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"producer"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Role != RoleProducer {
		t.Fatalf("expected producer, got %s", decoded.Role)
	}
	if err := json.Unmarshal([]byte(`{"role":"grower"}`), &decoded); err == nil {
		t.Fatalf("expected unknown role to fail decoding")
	}
}

func TestDefaultPointKindFollowsRole(t *testing.T) {
	if RoleProducer.DefaultPointKind() != PointOfPresence {
		t.Fatalf("expected producers to default to presence")
	}
	if RoleConsumer.DefaultPointKind() != PointOfDelivery {
		t.Fatalf("expected consumers to default to delivery")
	}
}

func TestParsePointKindAcceptsShortNames(t *testing.T) {
	cases := map[string]PointKind{
		"presence": PointOfPresence,
		"PoP":      PointOfPresence,
		"delivery": PointOfDelivery,
		"pod":      PointOfDelivery,
	}
	for input, want := range cases {
		got, err := ParsePointKind(input)
		if err != nil {
			t.Fatalf("ParsePointKind(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParsePointKind(%q): expected %s, got %s", input, want, got)
		}
	}

	if _, err := PointKindFromCode(-1); err == nil {
		t.Fatalf("expected unknown kind code to be rejected")
	}
}

func TestCanonicalPairIsSymmetric(t *testing.T) {
	for i := 0; i < 50; i++ {
		a, b := uuid.New(), uuid.New()

		p1, p2 := CanonicalPair(a, b)
		q1, q2 := CanonicalPair(b, a)
		if p1 != q1 || p2 != q2 {
			t.Fatalf("pair (%s, %s) is not symmetric", a, b)
		}
		if p1.String() > p2.String() {
			t.Fatalf("expected %s to sort before %s", p1, p2)
		}
	}
}

func TestConversationOtherParticipant(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	conversation := Conversation{Participant1ID: a, Participant2ID: b}

	if conversation.OtherParticipant(a) != b || conversation.OtherParticipant(b) != a {
		t.Fatalf("unexpected other participant")
	}
	if conversation.HasParticipant(uuid.New()) {
		t.Fatalf("expected outsider not to be a participant")
	}
}
