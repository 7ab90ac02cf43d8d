package user

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type archivedMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func TestProperty_RawMessageArchive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	messageIDGen := gen.SliceOfN(12, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return "imap:" + string(chars)
	})

	properties.Property("save_then_load_round_trip", prop.ForAll(
		func(userID, accountID uint, messageID, subject string) bool {
			storage := NewStorage(NewManager(t.TempDir()))

			saved := archivedMessage{Subject: subject, Body: "corps"}
			if _, err := storage.SaveRawMessage(userID, accountID, messageID, saved); err != nil {
				return false
			}

			var loaded archivedMessage
			if err := storage.GetRawMessage(userID, accountID, messageID, &loaded); err != nil {
				return false
			}
			return loaded == saved
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 100),
		messageIDGen,
		gen.AlphaString(),
	))

	properties.Property("missing_message_returns_not_found", prop.ForAll(
		func(userID, accountID uint, messageID string) bool {
			storage := NewStorage(NewManager(t.TempDir()))

			var out archivedMessage
			err := storage.GetRawMessage(userID, accountID, messageID, &out)
			return errors.Is(err, ErrFileNotFound)
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 100),
		messageIDGen,
	))

	properties.Property("listing_reflects_saved_messages", prop.ForAll(
		func(userID, accountID uint, messageID string) bool {
			storage := NewStorage(NewManager(t.TempDir()))

			files, err := storage.ListRawMessages(userID, accountID)
			if err != nil || len(files) != 0 {
				return false
			}

			if _, err := storage.SaveRawMessage(userID, accountID, messageID, archivedMessage{}); err != nil {
				return false
			}

			files, err = storage.ListRawMessages(userID, accountID)
			return err == nil && len(files) == 1 && strings.HasSuffix(files[0], ".json")
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 100),
		messageIDGen,
	))

	properties.TestingRun(t)
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"imap:uid-42", "imap_uid-42"},
		{"gmail:18f/ab", "gmail_18f_ab"},
		{`a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"../../etc/passwd", ".._.._etc_passwd"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStorageCrossUserIsolation(t *testing.T) {
	storage := NewStorage(NewManager(t.TempDir()))

	if _, err := storage.SaveRawMessage(1, 1, "imap:mine", archivedMessage{Subject: "privé"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Another user's lookup with the same ids resolves inside their own
	// subtree, which is empty
	var out archivedMessage
	if err := storage.GetRawMessage(2, 1, "imap:mine", &out); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}
