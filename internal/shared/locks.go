package shared

import "fmt"

// QuotationSessionKey is the redis key holding a quotation's editing session.
func QuotationSessionKey(quotationID string) string {
	return fmt.Sprintf("quotedesk:quotation:%s:session", quotationID)
}

// QuotationCommitLockKey builds redis keys for the save/finalize critical section.
func QuotationCommitLockKey(quotationID string) string {
	return fmt.Sprintf("quotedesk:quotation:%s:commit", quotationID)
}

// QuotationSessionLockKey guards read-modify-write cycles on a session.
func QuotationSessionLockKey(quotationID string) string {
	return fmt.Sprintf("quotedesk:quotation:%s:session-lock", quotationID)
}
