package types

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xa")
	bob   = common.HexToAddress("0xb")
	carol = common.HexToAddress("0xc")
)

func TestTokenLedgerTransfers(t *testing.T) {
	ledger := NewTokenLedger("LOAN")
	if got := ledger.Symbol(); got != "LOAN" {
		t.Fatalf("symbol %q", got)
	}
	if err := ledger.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.BalanceOf(alice); got.Int64() != 700 {
		t.Fatalf("alice holds %s want 700", got)
	}
	if got := ledger.BalanceOf(bob); got.Int64() != 300 {
		t.Fatalf("bob holds %s want 300", got)
	}

	if err := ledger.Transfer(bob, alice, big.NewInt(301)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("negative transfer: got %v", err)
	}
	// Zero transfers are a no-op, even from empty accounts.
	if err := ledger.Transfer(carol, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestTokenLedgerAllowances(t *testing.T) {
	ledger := NewTokenLedger("LOAN")
	if err := ledger.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("unapproved spend: got %v", err)
	}
	if err := ledger.Approve(alice, bob, big.NewInt(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(200)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := ledger.Allowance(alice, bob); got.Int64() != 300 {
		t.Fatalf("allowance %s want 300", got)
	}
	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(301)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("overspend: got %v", err)
	}
	if got := ledger.BalanceOf(carol); got.Int64() != 200 {
		t.Fatalf("carol holds %s want 200", got)
	}
}

func TestOwnershipLedger(t *testing.T) {
	ledger := NewOwnershipLedger()
	id := common.HexToHash("0x01")

	if _, err := ledger.OwnerOf(id); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("unknown id: got %v", err)
	}
	if err := ledger.Register(id, alice); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.Register(id, bob); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("double mint: got %v", err)
	}

	if !ledger.IsApprovedOrOwner(alice, id) {
		t.Fatal("owner not authorized")
	}
	if ledger.IsApprovedOrOwner(bob, id) {
		t.Fatal("stranger authorized")
	}

	if err := ledger.Approve(id, bob); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !ledger.IsApprovedOrOwner(bob, id) {
		t.Fatal("approved spender not authorized")
	}

	ledger.SetApprovalForAll(alice, carol, true)
	if !ledger.IsApprovedOrOwner(carol, id) {
		t.Fatal("operator not authorized")
	}
	ledger.SetApprovalForAll(alice, carol, false)
	if ledger.IsApprovedOrOwner(carol, id) {
		t.Fatal("revoked operator still authorized")
	}

	// Transfer clears the single-id approval.
	if err := ledger.Transfer(id, carol); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := ledger.OwnerOf(id)
	if err != nil || owner != carol {
		t.Fatalf("owner %s err %v", owner, err)
	}
	if ledger.IsApprovedOrOwner(bob, id) {
		t.Fatal("stale approval survived transfer")
	}
}
