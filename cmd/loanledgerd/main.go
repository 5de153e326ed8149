package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"loanledger/config"
	"loanledger/core/events"
	"loanledger/core/types"
	"loanledger/native/collateral"
	nativecommon "loanledger/native/common"
	"loanledger/native/debt"
	"loanledger/native/installments"
	"loanledger/observability/logging"
	"loanledger/storage"
)

const envVar = "LOANLEDGER_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("loanledgerd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	debtEngine, collateralEngine, err := buildEngines(cfg, db)
	if err != nil {
		logger.Error("Failed to assemble ledger engines", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("loan ledger initialized",
		slog.String("dataDir", cfg.DataDir),
		slog.Uint64("feeBps", debtEngine.Fee()),
		slog.Bool("collateral", collateralEngine != nil),
	)

	// The engines are in-process capabilities; a transport attaches here.
	// Until then the daemon holds the database open and waits for shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
}

// buildEngines wires the full dependency graph: typed stores over the shared
// database, ledgers for settlement and ownership, and the three engines with
// the installment model registered under its canonical name.
func buildEngines(cfg *config.Config, db storage.Database) (*debt.Engine, *collateral.Engine, error) {
	loanToken := types.NewTokenLedger("LOAN")
	ownership := types.NewOwnershipLedger()
	pauses := nativecommon.Pauses(cfg.Pauses)
	emitter := events.LogEmitter{Logger: slog.Default()}

	modelEngine := installments.NewEngine()
	modelEngine.SetState(storage.NewLoanStore(db))

	debtModule := config.Address(cfg.Debt.ModuleAddress)
	debtEngine := debt.NewEngine(debtModule, config.Address(cfg.Debt.BurnAddress), loanToken, ownership)
	debtEngine.SetState(storage.NewDebtStore(db))
	debtEngine.SetPauses(pauses)
	debtEngine.SetEmitter(emitter)
	debtEngine.RegisterModel("installments", modelEngine)
	if err := debtEngine.SetFee(cfg.Debt.FeeBps); err != nil {
		return nil, nil, err
	}

	colModule := config.Address(cfg.Collateral.ModuleAddress)
	colRegistry := collateral.OwnershipAdapter{Ledger: types.NewOwnershipLedger()}
	collateralEngine := collateral.NewEngine(colModule, debtEngine, loanToken, colRegistry)
	collateralEngine.SetState(storage.NewEntryStore(db))
	collateralEngine.SetPauses(pauses)
	collateralEngine.SetEmitter(emitter)

	// Auction settlement pays debts through the debt engine, which pulls the
	// proceeds from the collateral module's account.
	if err := loanToken.Approve(colModule, debtModule, maxAllowance()); err != nil {
		return nil, nil, err
	}

	return debtEngine, collateralEngine, nil
}

// maxAllowance is the 128-bit ceiling every engine balance already honors.
func maxAllowance() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	return max.Sub(max, big.NewInt(1))
}
