package content

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/matheus3301/wavault/internal/store"
)

// Tally is the aggregated state of a poll, stored as the poll message's
// content payload. Items follow the creation order of the options; Sign
// carries the poll's encryption secret so later votes can be decrypted
// from the persisted record alone.
type Tally struct {
	Content string        `json:"content"`
	Items   []TallyOption `json:"items"`
	Sign    []byte        `json:"sign,omitempty"`
}

// TallyOption is one poll option with the identities of everyone
// currently voting for it.
type TallyOption struct {
	Content string   `json:"content"`
	Voters  []string `json:"voters"`
}

// NewTally builds the zero-vote tally for a poll definition.
func NewTally(p *store.PollCreate) *Tally {
	t := &Tally{Content: p.Question, Sign: p.Secret}
	for _, opt := range p.Options {
		t.Items = append(t.Items, TallyOption{Content: opt, Voters: []string{}})
	}
	return t
}

// OptionDigest is the wire identity of a poll option: the hex SHA-256 of
// its display text. Vote payloads carry digests, not texts.
func OptionDigest(option string) string {
	sum := sha256.Sum256([]byte(option))
	return hex.EncodeToString(sum[:])
}

// votePayload is the JSON carried inside an encrypted vote.
type votePayload struct {
	Selected []string `json:"selectedOptions"`
}

// voteKey derives the AES-256 key for one voter's ballot on one poll.
func voteKey(secret []byte, pollID, voter string) ([]byte, error) {
	info := fmt.Sprintf("%s\x00%s", pollID, voter)
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// DecryptVote opens an encrypted ballot and returns the selected option
// digests. An empty slice is a valid ballot: it retracts the vote.
func DecryptVote(secret []byte, pollID, voter string, payload, iv []byte) ([]string, error) {
	if len(secret) == 0 {
		return nil, errors.New("poll has no encryption secret")
	}
	key, err := voteKey(secret, pollID, voter)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, iv, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("open vote: %w", err)
	}
	var v votePayload
	if err := json.Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("decode vote: %w", err)
	}
	return v.Selected, nil
}

// EncryptVote is the inverse of DecryptVote. The daemon uses it when this
// account casts a vote; tests use it to build ballots.
func EncryptVote(secret []byte, pollID, voter string, selected []string, iv []byte) ([]byte, error) {
	key, err := voteKey(secret, pollID, voter)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(votePayload{Selected: selected})
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plain, nil), nil
}

// Apply records one voter's current selection. The voter is first removed
// everywhere, then added to each selected option, so a voter holds at
// most one ballot and an empty selection retracts it. Reports whether the
// tally changed.
func (t *Tally) Apply(voter string, selected []string) bool {
	chosen := make(map[string]bool, len(selected))
	for _, d := range selected {
		chosen[d] = true
	}
	changed := false
	for i := range t.Items {
		item := &t.Items[i]
		had := false
		kept := item.Voters[:0]
		for _, v := range item.Voters {
			if v == voter {
				had = true
				continue
			}
			kept = append(kept, v)
		}
		item.Voters = kept
		if chosen[OptionDigest(item.Content)] {
			item.Voters = append(item.Voters, voter)
			if !had {
				changed = true
			}
		} else if had {
			changed = true
		}
	}
	return changed
}
