package pos

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LegacyReceiptID is the timestamp-only id format: "R-" followed by the UTC
// date and time to the minute and the unpadded millisecond. Two commits in
// the same millisecond (or the same minute and millisecond) get the same id.
func LegacyReceiptID(t time.Time) string {
	u := t.UTC()
	ms := u.Nanosecond() / int(time.Millisecond)
	return "R-" + u.Format("200601021504") + strconv.Itoa(ms)
}

// Issuer hands out receipt ids: the legacy timestamp prefix plus a per-store
// sequence that is persisted together with the sale it numbers.
type Issuer struct {
	seq uint64
}

func NewIssuer(last uint64) *Issuer { return &Issuer{seq: last} }

func (i *Issuer) Next(t time.Time) string {
	i.seq++
	return fmt.Sprintf("%s-%06d", LegacyReceiptID(t), i.seq)
}

// Seq returns the last sequence number handed out.
func (i *Issuer) Seq() uint64 { return i.seq }

// receiptSeq extracts the sequence suffix of an id issued by Issuer.
func receiptSeq(id string) (uint64, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 || !strings.HasPrefix(id, "R-") || i < 2 {
		return 0, false
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
