// ledgerctl is a small operator tool for inspecting a running EcoLedger
// node: carbon credits, chain statistics and recent blocks.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/olekukonko/tablewriter"
)

type creditsResponse struct {
	Credits []struct {
		CreditID  string  `json:"credit_id"`
		OwnerID   string  `json:"owner_id"`
		ProjectID string  `json:"project_id"`
		Amount    float64 `json:"amount"`
		Status    string  `json:"status"`
		IssuedAt  string  `json:"issued_at"`
	} `json:"credits"`
	TotalCredits float64 `json:"total_credits"`
}

type blockchainResponse struct {
	Stats struct {
		Blocks       int64 `json:"blocks"`
		Transactions int64 `json:"transactions"`
		Reports      int64 `json:"verification_reports"`
		Available    struct {
			Count       int64   `json:"count"`
			TotalAmount float64 `json:"total_amount"`
		} `json:"available_credits"`
		Transferred struct {
			Count       int64   `json:"count"`
			TotalAmount float64 `json:"total_amount"`
		} `json:"transferred_credits"`
	} `json:"blockchain_stats"`
	RecentBlocks []struct {
		BlockNumber      uint64 `json:"block_number"`
		BlockHash        string `json:"block_hash"`
		Timestamp        string `json:"timestamp"`
		TransactionCount int    `json:"transaction_count"`
	} `json:"recent_blocks"`
}

func main() {
	node := flag.String("node", "http://localhost:8080", "base URL of the ledger node")
	owner := flag.String("owner", "", "filter credits by owner")
	status := flag.String("status", "", "filter credits by status")
	limit := flag.Int("limit", 50, "max credits to list")
	flag.Parse()

	client := resty.New().SetBaseURL(*node)

	switch flag.Arg(0) {
	case "credits":
		listCredits(client, *owner, *status, *limit)
	case "chain":
		showChain(client)
	default:
		fmt.Fprintln(os.Stderr, "usage: ledgerctl [-node URL] credits|chain")
		os.Exit(1)
	}
}

func listCredits(client *resty.Client, owner, status string, limit int) {
	var out creditsResponse
	resp, err := client.R().
		SetQueryParam("owner", owner).
		SetQueryParam("status", status).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/ledger/credits")
	if err != nil {
		fmt.Fprintln(os.Stderr, "request failed:", err)
		os.Exit(1)
	}
	if resp.IsError() {
		fmt.Fprintln(os.Stderr, "node returned:", resp.Status())
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Credit ID", "Owner", "Project", "Amount", "Status", "Issued At")
	for _, credit := range out.Credits {
		_ = table.Append([]string{
			credit.CreditID,
			credit.OwnerID,
			credit.ProjectID,
			fmt.Sprintf("%.2f", credit.Amount),
			credit.Status,
			credit.IssuedAt,
		})
	}
	_ = table.Render()
	fmt.Printf("total credits: %.2f\n", out.TotalCredits)
}

func showChain(client *resty.Client) {
	var out blockchainResponse
	resp, err := client.R().SetResult(&out).Get("/ledger/blockchain")
	if err != nil {
		fmt.Fprintln(os.Stderr, "request failed:", err)
		os.Exit(1)
	}
	if resp.IsError() {
		fmt.Fprintln(os.Stderr, "node returned:", resp.Status())
		os.Exit(1)
	}

	stats := tablewriter.NewWriter(os.Stdout)
	stats.Header("Blocks", "Transactions", "Reports", "Available", "Transferred")
	_ = stats.Append([]string{
		strconv.FormatInt(out.Stats.Blocks, 10),
		strconv.FormatInt(out.Stats.Transactions, 10),
		strconv.FormatInt(out.Stats.Reports, 10),
		fmt.Sprintf("%.2f", out.Stats.Available.TotalAmount),
		fmt.Sprintf("%.2f", out.Stats.Transferred.TotalAmount),
	})
	_ = stats.Render()

	blocks := tablewriter.NewWriter(os.Stdout)
	blocks.Header("Block", "Hash", "Txs", "Timestamp")
	for _, block := range out.RecentBlocks {
		_ = blocks.Append([]string{
			strconv.FormatUint(block.BlockNumber, 10),
			block.BlockHash[:16] + "...",
			strconv.Itoa(block.TransactionCount),
			block.Timestamp,
		})
	}
	_ = blocks.Render()
}
