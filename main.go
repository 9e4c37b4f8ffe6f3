package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"eco-ledger/api"
	"eco-ledger/config"
	"eco-ledger/database"
	"eco-ledger/ledger"
	"eco-ledger/log"
	"eco-ledger/net"
)

func main() {
	cfg := config.LoadConfig()

	net.Init(&cfg.Net)
	log.Init(&cfg.Log)

	db := database.New(&cfg.DB)

	ldg := ledger.New(db)

	apiSrv := api.New(ldg, &cfg.Server)
	apiSrv.Start()

	c := cron.New(cron.WithSeconds())
	_, _ = c.AddFunc(cfg.Ledger.AuditSpec, func() {
		result, err := ldg.VerifyChain()
		if err != nil {
			zap.S().Errorf("Chain audit failed: [%s]", err.Error())
			return
		}
		zap.S().Infof("Chain audit passed, blocks [%d], transactions [%d]",
			result.BlocksChecked, result.TransactionsChecked)
	})
	_, _ = c.AddFunc("0 */10 * * * *", func() {
		db.Report()
	})
	c.Start()

	watchOSSignal(apiSrv, db)
}

func watchOSSignal(apiSrv *api.Server, db *database.LedgerDB) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	apiSrv.Stop()
	db.Close()
}
