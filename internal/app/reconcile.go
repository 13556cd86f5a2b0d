/**
 * @description
 * Reconciliation of a provider envelope into the local ledger record. This is
 * deliberately a set of pure functions over the in-memory transaction so the
 * state-machine rules (terminal stamps are write-once, token capture is
 * insert-if-absent) can be tested without a database.
 */

package app

import (
	"strings"
	"time"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/pkg/redbiller"
)

// applyProviderResult folds a provider envelope into the transaction.
//
// Rules:
//   - A transport-level failure (OK=false) marks the attempt FAILED.
//   - On OK, the provider's own status string wins, uppercased; a body
//     without a status keeps the record where it is (a new attempt stays
//     PENDING, a settled one stays settled).
//   - paid_at is stamped the first time SUCCESS is observed and never moves;
//     failed_at behaves the same for FAILED. Replays are no-ops.
//   - Provider-reported figures overwrite local ones only when present.
func applyProviderResult(tx *domain.BillTransaction, resp redbiller.Response, now time.Time) {
	body := responseBody(resp)
	tx.ProviderResponse = body

	if !resp.OK {
		tx.Status = domain.StatusFailed
	} else if s := stringField(body, "status"); s != nil {
		tx.Status = strings.ToUpper(*s)
	} else if tx.Status == "" {
		tx.Status = domain.StatusPending
	}

	if id := stringField(body, "id"); id != nil {
		tx.ProviderTxnID = id
	}
	if name := stringField(body, "customer_name"); name != nil {
		tx.CustomerName = name
	}
	if paid, ok := amountKobo(body, "amount_paid"); ok {
		tx.AmountPaid = paid
	}
	if fee, ok := amountKobo(body, "fee"); ok {
		tx.Fee = fee
	}
	if debited, ok := amountKobo(body, "amount_debited"); ok {
		tx.Cost = debited
	}

	if tx.Status == domain.StatusSuccess && tx.PaidAt == nil {
		stamp := now
		tx.PaidAt = &stamp
	}
	if tx.Status == domain.StatusFailed && tx.FailedAt == nil {
		stamp := now
		tx.FailedAt = &stamp
	}
}

// extractTokens pulls prepaid token entries out of a provider body. Tokens
// live under `tokens` or `data.tokens`; each entry carries the digits under
// `token` or `pin`. Entries with neither are skipped.
func extractTokens(body map[string]any) []domain.ElectricityToken {
	raw, ok := body["tokens"].([]any)
	if !ok {
		if data, isMap := body["data"].(map[string]any); isMap {
			raw, ok = data["tokens"].([]any)
		}
	}
	if !ok {
		return nil
	}

	var tokens []domain.ElectricityToken
	for _, entry := range raw {
		item, isMap := entry.(map[string]any)
		if !isMap {
			continue
		}
		value := stringField(item, "token")
		if value == nil {
			value = stringField(item, "pin")
		}
		if value == nil {
			continue
		}

		token := domain.ElectricityToken{Token: *value, Raw: item}
		if units, hasUnits := intField(item, "units"); hasUnits {
			token.Units = &units
		}
		if tariff := stringField(item, "tariff"); tariff != nil {
			token.TariffCode = tariff
		} else if tariff := stringField(item, "tariff_code"); tariff != nil {
			token.TariffCode = tariff
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// tokenInfos converts stored token rows to their caller-facing shape.
func tokenInfos(tokens []domain.ElectricityToken) []domain.TokenInfo {
	if len(tokens) == 0 {
		return nil
	}
	infos := make([]domain.TokenInfo, 0, len(tokens))
	for _, token := range tokens {
		infos = append(infos, domain.TokenInfo{
			Token:  token.Token,
			Units:  token.Units,
			Tariff: token.TariffCode,
		})
	}
	return infos
}
