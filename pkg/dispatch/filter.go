package dispatch

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getlogtx/logtx/pkg/txn"
)

// TxnFilter gates delivery of completed transactions. Two orthogonal
// controls, both optional: a regular expression matched against every
// fragment payload of the transaction (any match includes it), and a
// boolean expression evaluated against the transaction's fields.
// Expressions are compiled once and run per transaction.
type TxnFilter struct {
	payloadRe *regexp.Regexp
	program   *vm.Program
}

// NewTxnFilter compiles the filter controls. Empty strings disable the
// corresponding control; ignoreCase applies to the payload pattern.
//
// Filter expressions see the transaction as a flat environment:
// kind, descriptor, method, url, status, reason, bodyLength, and for
// client transactions also xid, clientAddr, hit, miss, backendName,
// directorName. Example: `status >= 500 && !hit`.
func NewTxnFilter(payloadPattern, filterExpr string, ignoreCase bool) (*TxnFilter, error) {
	f := &TxnFilter{}

	if payloadPattern != "" {
		if ignoreCase {
			payloadPattern = "(?i)" + payloadPattern
		}
		re, err := regexp.Compile(payloadPattern)
		if err != nil {
			return nil, fmt.Errorf("payload pattern: %w", err)
		}
		f.payloadRe = re
	}

	if filterExpr != "" {
		program, err := expr.Compile(filterExpr, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter expression: %w", err)
		}
		f.program = program
	}

	return f, nil
}

// Match reports whether the completed transaction passes both
// controls. A nil filter matches everything.
func (f *TxnFilter) Match(rec txn.Record) (bool, error) {
	if f == nil {
		return true, nil
	}

	if f.payloadRe != nil {
		matched := false
		for _, frag := range rec.Fragments() {
			if f.payloadRe.MatchString(frag.Payload) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	if f.program != nil {
		out, err := expr.Run(f.program, environment(rec))
		if err != nil {
			return false, fmt.Errorf("filter expression: %w", err)
		}
		ok, _ := out.(bool)
		return ok, nil
	}

	return true, nil
}

// environment flattens a transaction record into the map a filter
// expression evaluates against.
func environment(rec txn.Record) map[string]any {
	env := map[string]any{
		"kind":       string(rec.Kind()),
		"descriptor": rec.Descriptor(),
	}

	switch t := rec.(type) {
	case *txn.ClientTxn:
		env["method"] = t.Method
		env["url"] = t.URL
		env["status"] = t.Status
		env["reason"] = t.Reason
		env["bodyLength"] = t.BodyLength
		env["xid"] = t.XID
		env["clientAddr"] = t.ClientAddr
		env["hit"] = t.Hit()
		env["miss"] = t.Miss()
		env["backendName"] = ""
		env["directorName"] = ""
		if t.Backend != nil {
			env["backendName"] = t.Backend.BackendName
			env["directorName"] = t.Backend.DirectorName
		}

	case *txn.BackendTxn:
		env["method"] = t.Method
		env["url"] = t.URL
		env["status"] = t.Status
		env["reason"] = t.Reason
		env["bodyLength"] = t.BodyLength
		env["backendName"] = t.BackendName
		env["directorName"] = t.DirectorName
	}

	return env
}
