package stock

// SetCachedBalance overwrites a cached balance without a movement so tests
// can simulate drift.
func (l *Ledger) SetCachedBalance(k StockKey, q int64) {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	l.balances[k] = q
}
