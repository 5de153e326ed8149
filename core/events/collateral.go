package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/types"
)

const (
	// TypeCollateralCreated marks a new collateral entry opened against a debt.
	TypeCollateralCreated = "collateral.created"
	// TypeCollateralClaimed marks a claim that handed collateral to auction.
	TypeCollateralClaimed = "collateral.claimed"
	// TypeAuctionClosed marks settlement of auction proceeds against a debt.
	TypeAuctionClosed = "collateral.auction_closed"
	// TypeCollateralRedeemed marks an emergency redemption of an entry.
	TypeCollateralRedeemed = "collateral.redeemed"
)

// CollateralCreated records the opening of a collateral entry.
type CollateralCreated struct {
	EntryID          uint64
	DebtID           common.Hash
	Owner            common.Address
	Amount           *big.Int
	LiquidationRatio *big.Int
	BalanceRatio     *big.Int
}

// EventType satisfies the events.Event interface.
func (CollateralCreated) EventType() string { return TypeCollateralCreated }

// Event converts the structured payload into a broadcastable event.
func (e CollateralCreated) Event() *types.Event {
	return &types.Event{Type: TypeCollateralCreated, Attributes: map[string]string{
		"entryId":          strconv.FormatUint(e.EntryID, 10),
		"debtId":           e.DebtID.Hex(),
		"owner":            e.Owner.Hex(),
		"amount":           bigString(e.Amount),
		"liquidationRatio": bigString(e.LiquidationRatio),
		"balanceRatio":     bigString(e.BalanceRatio),
	}}
}

// CollateralClaimed records a liquidation claim handed off to the auction house.
type CollateralClaimed struct {
	EntryID   uint64
	DebtID    common.Hash
	AuctionID uint64
	Sold      *big.Int
	Required  *big.Int
}

// EventType satisfies the events.Event interface.
func (CollateralClaimed) EventType() string { return TypeCollateralClaimed }

// Event converts the structured payload into a broadcastable event.
func (e CollateralClaimed) Event() *types.Event {
	return &types.Event{Type: TypeCollateralClaimed, Attributes: map[string]string{
		"entryId":   strconv.FormatUint(e.EntryID, 10),
		"debtId":    e.DebtID.Hex(),
		"auctionId": strconv.FormatUint(e.AuctionID, 10),
		"sold":      bigString(e.Sold),
		"required":  bigString(e.Required),
	}}
}

// AuctionClosed records the application of auction proceeds to a debt.
type AuctionClosed struct {
	EntryID  uint64
	DebtID   common.Hash
	Received *big.Int
	Paid     *big.Int
	Leftover *big.Int
	Refunded *big.Int
}

// EventType satisfies the events.Event interface.
func (AuctionClosed) EventType() string { return TypeAuctionClosed }

// Event converts the structured payload into a broadcastable event.
func (e AuctionClosed) Event() *types.Event {
	return &types.Event{Type: TypeAuctionClosed, Attributes: map[string]string{
		"entryId":  strconv.FormatUint(e.EntryID, 10),
		"debtId":   e.DebtID.Hex(),
		"received": bigString(e.Received),
		"paid":     bigString(e.Paid),
		"leftover": bigString(e.Leftover),
		"refunded": bigString(e.Refunded),
	}}
}

// CollateralRedeemed records the emergency return of a broken entry's funds.
type CollateralRedeemed struct {
	EntryID uint64
	To      common.Address
	Amount  *big.Int
}

// EventType satisfies the events.Event interface.
func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeCollateralRedeemed, Attributes: map[string]string{
		"entryId": strconv.FormatUint(e.EntryID, 10),
		"to":      e.To.Hex(),
		"amount":  bigString(e.Amount),
	}}
}
