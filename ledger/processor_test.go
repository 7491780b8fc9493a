package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProcessor(t *testing.T) (*ledger.TransactionProcessor, *ledger.WalletManager) {
	t.Helper()
	mem := store.NewMemory()
	wallets := ledger.NewWalletManager(mem)
	return ledger.NewTransactionProcessor(mem, wallets), wallets
}

func available(t *testing.T, m *ledger.WalletManager, id ledger.WalletID) decimal.Decimal {
	t.Helper()
	balance, err := m.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return balance.Available
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestProcessor_InitiateComplete_MovesValue(t *testing.T) {
	// GIVEN: Payer holds 500, payee holds 0
	// WHEN: A 200 payment is initiated and completed
	// THEN: 200 moved across, total value conserved

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 500)
	payee := fundedWallet(t, m, "clinic", 0)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(200),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, tx.Status)

	// Pending entries have no wallet effect
	assert.True(t, available(t, m, payer.ID).Equal(ngn(500).Amount))

	tx, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	require.NotNil(t, tx.SettledAt)

	assert.True(t, available(t, m, payer.ID).Equal(ngn(300).Amount))
	assert.True(t, available(t, m, payee.ID).Equal(ngn(200).Amount))
}

func TestProcessor_Complete_WithFee_ConservesValue(t *testing.T) {
	// GIVEN: A 200 payment carrying a 15 platform fee
	// WHEN: The payment completes
	// THEN: Payer -200, payee +185, fee holder +15

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 500)
	payee := fundedWallet(t, m, "clinic", 0)
	platformWallet, err := m.CreateWallet(ctx, "platform", ledger.WalletPlatform, ledger.NGN)
	require.NoError(t, err)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(200),
		Fee:    ledger.Fee{Amount: decimal.NewFromInt(15), HolderWalletID: &platformWallet.ID},
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)

	assert.True(t, available(t, m, payer.ID).Equal(ngn(300).Amount))
	assert.True(t, available(t, m, payee.ID).Equal(ngn(185).Amount))
	assert.True(t, available(t, m, platformWallet.ID).Equal(ngn(15).Amount))

	total := available(t, m, payer.ID).
		Add(available(t, m, payee.ID)).
		Add(available(t, m, platformWallet.ID))
	assert.True(t, total.Equal(decimal.NewFromInt(500)), "value must be conserved")
}

func TestProcessor_Complete_Idempotent(t *testing.T) {
	// GIVEN: A completed 100 payment
	// WHEN: Complete is called a second time
	// THEN: No error and no double application

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 300)
	payee := fundedWallet(t, m, "clinic", 0)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(100),
	})
	require.NoError(t, err)

	_, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)
	again, err := p.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, again.Status)

	assert.True(t, available(t, m, payer.ID).Equal(ngn(200).Amount),
		"second Complete must not re-apply effects")
}

func TestProcessor_Initiate_DuplicateReference_ReturnsExisting(t *testing.T) {
	// GIVEN: A payment initiated with reference "ord-1"
	// WHEN: A retry initiates with the same reference
	// THEN: The existing entry comes back, no second entry is created

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 300)
	payee := fundedWallet(t, m, "clinic", 0)

	in := ledger.InitiateInput{
		Kind:      ledger.KindPayment,
		From:      ledger.WalletParty(payer.ID),
		To:        ledger.WalletParty(payee.ID),
		Amount:    ngn(100),
		Reference: "ord-1",
	}
	first, err := p.Initiate(ctx, in)
	require.NoError(t, err)

	retry, err := p.Initiate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)
}

func TestProcessor_Initiate_Invalid(t *testing.T) {
	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 100)

	// Non-positive amount
	_, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.External(),
		Amount: ngn(0),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	// No party on either side
	_, err = p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindTransfer,
		From:   ledger.External(),
		To:     ledger.External(),
		Amount: ngn(10),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	// Fee without a holder
	_, err = p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.External(),
		Amount: ngn(50),
		Fee:    ledger.Fee{Amount: decimal.NewFromInt(5)},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestProcessor_Fail_NoWalletEffect(t *testing.T) {
	// GIVEN: A pending 100 payment
	// WHEN: The payment fails at the rail
	// THEN: Status is failed with the reason, balances untouched

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 250)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindWithdrawal,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.External(),
		Amount: ngn(100),
	})
	require.NoError(t, err)

	tx, err = p.Fail(ctx, tx.ID, "rail timeout")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	assert.Equal(t, "rail timeout", tx.FailureReason)

	assert.True(t, available(t, m, payer.ID).Equal(ngn(250).Amount))

	// Failed is terminal
	_, err = p.Complete(ctx, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestProcessor_CompleteFailed_InsufficientFunds_LeavesLedgerConsistent(t *testing.T) {
	// GIVEN: A pending payment larger than the payer's balance
	// WHEN: Complete runs
	// THEN: It fails, the entry stays pending, and no wallet moved

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 50)
	payee := fundedWallet(t, m, "clinic", 0)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(100),
	})
	require.NoError(t, err)

	_, err = p.Complete(ctx, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	reloaded, err := p.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, reloaded.Status)
	assert.True(t, available(t, m, payee.ID).IsZero())
}

// =============================================================================
// REVERSAL TESTS
// =============================================================================

func TestProcessor_Reverse_RoundTrip(t *testing.T) {
	// GIVEN: A completed fee-free 150 payment
	// WHEN: The payment is reversed
	// THEN: Balances are restored and both entries are linked

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 400)
	payee := fundedWallet(t, m, "clinic", 0)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(150),
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)

	reversal, err := p.Reverse(ctx, tx.ID, "service not rendered")
	require.NoError(t, err)

	assert.Equal(t, ledger.KindRefund, reversal.Kind)
	assert.Equal(t, ledger.StatusCompleted, reversal.Status)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, tx.ID, *reversal.ReversalOf)

	original, err := p.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReversed, original.Status)
	require.NotNil(t, original.ReversedBy)
	assert.Equal(t, reversal.ID, *original.ReversedBy)

	assert.True(t, available(t, m, payer.ID).Equal(ngn(400).Amount),
		"fee-free reversal must restore the payer exactly")
	assert.True(t, available(t, m, payee.ID).IsZero())
}

func TestProcessor_Reverse_WithFee_NetOnly(t *testing.T) {
	// GIVEN: A completed 200 payment with a 15 fee
	// WHEN: The payment is reversed
	// THEN: The payee returns the 185 net; the fee stays with the holder

	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 500)
	payee := fundedWallet(t, m, "clinic", 0)
	platformWallet, err := m.CreateWallet(ctx, "platform", ledger.WalletPlatform, ledger.NGN)
	require.NoError(t, err)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(200),
		Fee:    ledger.Fee{Amount: decimal.NewFromInt(15), HolderWalletID: &platformWallet.ID},
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)

	reversal, err := p.Reverse(ctx, tx.ID, "refund")
	require.NoError(t, err)
	assert.True(t, reversal.Amount.Amount.Equal(decimal.NewFromInt(185)))

	assert.True(t, available(t, m, payer.ID).Equal(ngn(485).Amount))
	assert.True(t, available(t, m, payee.ID).IsZero())
	assert.True(t, available(t, m, platformWallet.ID).Equal(ngn(15).Amount),
		"fees are not refunded by a reversal")
}

func TestProcessor_Reverse_Pending_Rejected(t *testing.T) {
	// Only completed entries can reverse; pending ones are rejected,
	// never queued.
	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 100)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindWithdrawal,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.External(),
		Amount: ngn(50),
	})
	require.NoError(t, err)

	_, err = p.Reverse(ctx, tx.ID, "nope")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestProcessor_Reverse_Twice_Rejected(t *testing.T) {
	p, m := newTestProcessor(t)
	ctx := context.Background()

	payer := fundedWallet(t, m, "payer", 100)
	payee := fundedWallet(t, m, "clinic", 0)

	tx, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindPayment,
		From:   ledger.WalletParty(payer.ID),
		To:     ledger.WalletParty(payee.ID),
		Amount: ngn(60),
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, tx.ID)
	require.NoError(t, err)
	_, err = p.Reverse(ctx, tx.ID, "first")
	require.NoError(t, err)

	_, err = p.Reverse(ctx, tx.ID, "second")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

// =============================================================================
// EXTERNAL RAIL AND STATEMENT TESTS
// =============================================================================

func TestProcessor_DepositWithdrawal_ExternalRail(t *testing.T) {
	// GIVEN: A fresh wallet
	// WHEN: A 300 deposit and a 120 withdrawal both settle
	// THEN: Available is 180 and the statement holds both entries

	p, m := newTestProcessor(t)
	ctx := context.Background()

	w := fundedWallet(t, m, "user-1", 0)

	dep, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindDeposit,
		From:   ledger.External(),
		To:     ledger.WalletParty(w.ID),
		Amount: ngn(300),
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, dep.ID)
	require.NoError(t, err)

	wd, err := p.Initiate(ctx, ledger.InitiateInput{
		Kind:   ledger.KindWithdrawal,
		From:   ledger.WalletParty(w.ID),
		To:     ledger.External(),
		Amount: ngn(120),
	})
	require.NoError(t, err)
	_, err = p.Complete(ctx, wd.ID)
	require.NoError(t, err)

	assert.True(t, available(t, m, w.ID).Equal(ngn(180).Amount))

	balance, err := m.GetBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, balance.Stats.TotalWithdrawn.Equal(decimal.NewFromInt(120)))

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	statement, err := p.Statement(ctx, w.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, statement, 2)
}
