package cli

import (
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/getlogtx/logtx/pkg/txn"
)

// TxnView is the JSON projection of a reconstructed transaction.
type TxnView struct {
	Kind       string `json:"kind"`
	Descriptor int    `json:"descriptor"`

	Method       string     `json:"method,omitempty"`
	URL          string     `json:"url,omitempty"`
	ReqProtocol  string     `json:"reqProtocol,omitempty"`
	RespProtocol string     `json:"respProtocol,omitempty"`
	Status       int        `json:"status,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	BodyLength   int        `json:"bodyLength,omitempty"`
	ReqHeaders   []txn.Pair `json:"reqHeaders,omitempty"`
	RespHeaders  []txn.Pair `json:"respHeaders,omitempty"`

	// Client-only fields.
	XID            string     `json:"xid,omitempty"`
	ClientAddr     string     `json:"clientAddr,omitempty"`
	ClientPort     string     `json:"clientPort,omitempty"`
	StartedAt      string     `json:"startedAt,omitempty"`
	CompletedAt    string     `json:"completedAt,omitempty"`
	StartDelay     float64    `json:"startDelaySec,omitempty"`
	ProcessingTime float64    `json:"processingSec,omitempty"`
	DeliverTime    float64    `json:"deliverSec,omitempty"`
	CacheDecisions []txn.Pair `json:"cacheDecisions,omitempty"`
	HashInputs     []string   `json:"hashInputs,omitempty"`
	Hit            bool       `json:"hit,omitempty"`
	Miss           bool       `json:"miss,omitempty"`
	Backend        *TxnView   `json:"backend,omitempty"`

	// Backend-only fields.
	BackendName  string `json:"backendName,omitempty"`
	DirectorName string `json:"directorName,omitempty"`
}

// NewTxnView projects a record for output.
func NewTxnView(rec txn.Record) *TxnView {
	switch t := rec.(type) {
	case *txn.ClientTxn:
		v := &TxnView{
			Kind:           string(t.Kind()),
			Descriptor:     t.Descriptor(),
			Method:         t.Method,
			URL:            t.URL,
			ReqProtocol:    t.ReqProtocol,
			RespProtocol:   t.RespProtocol,
			Status:         t.Status,
			Reason:         t.Reason,
			BodyLength:     t.BodyLength,
			ReqHeaders:     t.ReqHeaders.Pairs(),
			RespHeaders:    t.RespHeaders.Pairs(),
			XID:            t.XID,
			ClientAddr:     t.ClientAddr,
			ClientPort:     t.ClientPort,
			StartDelay:     t.StartDelay.Seconds(),
			ProcessingTime: t.ProcessingTime.Seconds(),
			DeliverTime:    t.DeliverTime.Seconds(),
			CacheDecisions: t.CacheDecisions.Pairs(),
			HashInputs:     t.HashInputs,
			Hit:            t.Hit(),
			Miss:           t.Miss(),
		}
		if !t.StartedAt.IsZero() {
			v.StartedAt = t.StartedAt.Format(time.RFC3339Nano)
		}
		if !t.CompletedAt.IsZero() {
			v.CompletedAt = t.CompletedAt.Format(time.RFC3339Nano)
		}
		if t.Backend != nil {
			v.Backend = NewTxnView(t.Backend)
		}
		return v

	case *txn.BackendTxn:
		return &TxnView{
			Kind:         string(t.Kind()),
			Descriptor:   t.Descriptor(),
			Method:       t.Method,
			URL:          t.URL,
			ReqProtocol:  t.ReqProtocol,
			RespProtocol: t.RespProtocol,
			Status:       t.Status,
			Reason:       t.Reason,
			BodyLength:   t.BodyLength,
			ReqHeaders:   t.ReqHeaders.Pairs(),
			RespHeaders:  t.RespHeaders.Pairs(),
			BackendName:  t.BackendName,
			DirectorName: t.DirectorName,
		}
	}
	return nil
}

func printTransaction(rec txn.Record) {
	view := NewTxnView(rec)
	if view == nil {
		return
	}
	if jsonOutput {
		fmt.Println(oj.JSON(view, 2))
		return
	}
	printText(view, "")
}

func printText(v *TxnView, indent string) {
	switch v.Kind {
	case string(txn.KindClient):
		fmt.Printf("%s%s %s:%s %s %s -> %d %s", indent, v.XID, v.ClientAddr, v.ClientPort, v.Method, v.URL, v.Status, cacheOutcome(v))
		if v.ProcessingTime > 0 {
			fmt.Printf(" (%.6fs)", v.ProcessingTime)
		}
		fmt.Println()
		if v.Backend != nil {
			printText(v.Backend, indent+"    ")
		}
	default:
		fmt.Printf("%sbackend %s via %s: %s %s -> %d\n", indent, v.BackendName, v.DirectorName, v.Method, v.URL, v.Status)
	}
}

func cacheOutcome(v *TxnView) string {
	switch {
	case v.Hit:
		return "hit"
	case v.Miss:
		return "miss"
	default:
		return "pass"
	}
}
