// Package numbering issues human-readable document numbers such as
// QT-20240105-K7Q2ZD and inserts them under a savepoint so a collision with an
// existing number is retried without aborting the surrounding transaction.
package numbering

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db"
)

const (
	QuotationPrefix = "QT"
	SamplePrefix    = "SMP"

	suffixLen     = 6
	savepointName = "document_number"
)

// ErrNumbersExhausted means every attempt collided with an existing number.
var ErrNumbersExhausted = errors.New("document number attempts exhausted")

var suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generator builds PREFIX-YYYYMMDD-XXXXXX numbers. The date is taken in JST
// so numbers match the business day the customer sees.
type Generator struct {
	now     func() time.Time
	entropy io.Reader
	loc     *time.Location
}

func NewGenerator() *Generator {
	return NewGeneratorWithSource(time.Now, rand.Reader)
}

// NewGeneratorWithSource lets tests pin the clock and the random suffix.
func NewGeneratorWithSource(now func() time.Time, entropy io.Reader) *Generator {
	return &Generator{now: now, entropy: entropy, loc: time.FixedZone("JST", 9*60*60)}
}

// Next returns a fresh number for prefix.
func (g *Generator) Next(prefix string) (string, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("read number entropy: %w", err)
	}
	suffix := suffixEncoding.EncodeToString(buf)[:suffixLen]
	return fmt.Sprintf("%s-%s-%s", prefix, g.now().In(g.loc).Format("20060102"), suffix), nil
}

// InsertUnique calls insert with a new number until it succeeds, fails with
// something other than a unique violation, or attempts run out. Each attempt
// runs under a savepoint; onRetry fires once per collision.
func (g *Generator) InsertUnique(tx *gorm.DB, prefix string, attempts int, onRetry func(), insert func(number string) error) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		number, err := g.Next(prefix)
		if err != nil {
			return "", err
		}
		if err := tx.SavePoint(savepointName).Error; err != nil {
			return "", fmt.Errorf("savepoint: %w", err)
		}
		err = insert(number)
		if err == nil {
			return number, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return "", err
		}
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			return "", fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		if onRetry != nil {
			onRetry()
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrNumbersExhausted, prefix, attempts)
}
