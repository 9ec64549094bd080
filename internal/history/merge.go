package history

import "sort"

// Merge folds incoming records into current.
//
// Each incoming record replaces the first record of current it matches.
// Bridge details already known locally are kept when the incoming record
// omits them. Unmatched records are added when upsert is set and dropped
// otherwise. When no record changed, current itself is returned. Otherwise
// added records come before the updated list, ordered newest first.
func Merge(current, incoming []Transaction, upsert bool) []Transaction {
	out, _ := merge(current, incoming, upsert)
	return out
}

func merge(current, incoming []Transaction, upsert bool) ([]Transaction, bool) {
	var (
		updated []Transaction
		added   []Transaction
		changed bool
	)

	for _, in := range incoming {
		list := current
		if updated != nil {
			list = updated
		}
		idx := indexOf(list, in)
		if idx < 0 {
			// Already staged in this pass.
			if j := indexOf(added, in); j >= 0 {
				added[j] = carryBridge(added[j], in)
				continue
			}
			if upsert {
				added = append(added, in)
				changed = true
			}
			continue
		}

		next := carryBridge(list[idx], in)
		if Fingerprint(next) == Fingerprint(list[idx]) {
			continue
		}
		if updated == nil {
			updated = append([]Transaction(nil), current...)
		}
		updated[idx] = next
		changed = true
	}

	if !changed {
		return current, false
	}
	if updated == nil {
		updated = current
	}
	out := make([]Transaction, 0, len(added)+len(updated))
	out = append(out, added...)
	out = append(out, updated...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Blockchain.Timestamp > out[j].Blockchain.Timestamp
	})
	return out, true
}

func indexOf(list []Transaction, t Transaction) int {
	for i := range list {
		if IsMatch(list[i], t) {
			return i
		}
	}
	return -1
}

// carryBridge returns in with existing's bridge details when in has none.
func carryBridge(existing, in Transaction) Transaction {
	if in.Bridge == nil && existing.Bridge != nil {
		b := *existing.Bridge
		in.Bridge = &b
	}
	return in
}
