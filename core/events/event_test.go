package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/types"
)

func TestTypedEventConversions(t *testing.T) {
	id := common.HexToHash("0xd1")
	owner := common.HexToAddress("0xa1")

	cases := []struct {
		ev       Event
		wantType string
		wantAttr map[string]string
	}{
		{
			ev:       DebtCreated{ID: id, Owner: owner, Creator: owner, Model: "installments"},
			wantType: TypeDebtCreated,
			wantAttr: map[string]string{"id": id.Hex(), "owner": owner.Hex(), "creator": owner.Hex(), "model": "installments"},
		},
		{
			ev:       DebtCreated{ID: id, Owner: owner, Creator: owner, Model: "installments", Oracle: "fx"},
			wantType: TypeDebtCreated,
			wantAttr: map[string]string{"id": id.Hex(), "owner": owner.Hex(), "creator": owner.Hex(), "model": "installments", "oracle": "fx"},
		},
		{
			ev:       DebtPaid{ID: id, Origin: owner, Requested: big.NewInt(100), Paid: big.NewInt(90), PaidToken: big.NewInt(90)},
			wantType: TypeDebtPaid,
			wantAttr: map[string]string{"id": id.Hex(), "origin": owner.Hex(), "requested": "100", "paid": "90", "paidToken": "90", "fee": "0"},
		},
		{
			ev:       DebtWithdrawn{ID: id, To: owner, Amount: big.NewInt(42)},
			wantType: TypeDebtWithdrawn,
			wantAttr: map[string]string{"id": id.Hex(), "to": owner.Hex(), "amount": "42"},
		},
		{
			ev:       DebtModelError{ID: id, Operation: "addPaid"},
			wantType: TypeDebtModelError,
			wantAttr: map[string]string{"id": id.Hex(), "operation": "addPaid"},
		},
		{
			ev: CollateralCreated{EntryID: 7, DebtID: id, Owner: owner, Amount: big.NewInt(1000),
				LiquidationRatio: big.NewInt(3), BalanceRatio: big.NewInt(4)},
			wantType: TypeCollateralCreated,
			wantAttr: map[string]string{"entryId": "7", "debtId": id.Hex(), "owner": owner.Hex(),
				"amount": "1000", "liquidationRatio": "3", "balanceRatio": "4"},
		},
		{
			ev:       CollateralClaimed{EntryID: 7, DebtID: id, AuctionID: 100, Sold: big.NewInt(956), Required: big.NewInt(956)},
			wantType: TypeCollateralClaimed,
			wantAttr: map[string]string{"entryId": "7", "debtId": id.Hex(), "auctionId": "100", "sold": "956", "required": "956"},
		},
		{
			ev: AuctionClosed{EntryID: 7, DebtID: id, Received: big.NewInt(1000), Paid: big.NewInt(910),
				Leftover: big.NewInt(10), Refunded: big.NewInt(90)},
			wantType: TypeAuctionClosed,
			wantAttr: map[string]string{"entryId": "7", "debtId": id.Hex(), "received": "1000",
				"paid": "910", "leftover": "10", "refunded": "90"},
		},
		{
			ev:       CollateralRedeemed{EntryID: 7, To: owner, Amount: big.NewInt(44)},
			wantType: TypeCollateralRedeemed,
			wantAttr: map[string]string{"entryId": "7", "to": owner.Hex(), "amount": "44"},
		},
	}
	for _, tc := range cases {
		if got := tc.ev.EventType(); got != tc.wantType {
			t.Fatalf("%T type %q want %q", tc.ev, got, tc.wantType)
		}
		flat, ok := tc.ev.(interface{ Event() *types.Event })
		if !ok {
			t.Fatalf("%T has no flattened form", tc.ev)
		}
		payload := flat.Event()
		if payload.Type != tc.wantType {
			t.Fatalf("%T payload type %q want %q", tc.ev, payload.Type, tc.wantType)
		}
		if !reflect.DeepEqual(payload.Attributes, tc.wantAttr) {
			t.Fatalf("%T attributes %v want %v", tc.ev, payload.Attributes, tc.wantAttr)
		}
	}
}

// Nil amounts must flatten to "0" rather than crash the emit path.
func TestConversionTolerateNilAmounts(t *testing.T) {
	payload := DebtPaid{ID: common.HexToHash("0xd1")}.Event()
	for _, key := range []string{"requested", "paid", "paidToken", "fee"} {
		if got := payload.Attributes[key]; got != "0" {
			t.Fatalf("%s flattened to %q want 0", key, got)
		}
	}
}

func TestLogEmitterFlattensEvents(t *testing.T) {
	var buf bytes.Buffer
	emitter := LogEmitter{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	emitter.Emit(DebtWithdrawn{
		ID:     common.HexToHash("0xd1"),
		To:     common.HexToAddress("0xa1"),
		Amount: big.NewInt(42),
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if got := line["type"]; got != TypeDebtWithdrawn {
		t.Fatalf("logged type %v want %s", got, TypeDebtWithdrawn)
	}
	if got := line["amount"]; got != "42" {
		t.Fatalf("logged amount %v want 42", got)
	}
	if got := line["id"]; got != common.HexToHash("0xd1").Hex() {
		t.Fatalf("logged id %v", got)
	}
}
