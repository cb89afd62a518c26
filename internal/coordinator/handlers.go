package coordinator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mbd888/teller/internal/advice"
	"github.com/mbd888/teller/internal/fraud"
	"github.com/mbd888/teller/internal/intent"
	"github.com/mbd888/teller/internal/logging"
	"github.com/mbd888/teller/internal/traces"
	"github.com/mbd888/teller/internal/transactions"
)

var (
	confirmTransferRe = regexp.MustCompile(`confirm transfer (\w+)`)
	confirmPaymentRe  = regexp.MustCompile(`confirm payment (\w+)`)
	cancelTransferRe  = regexp.MustCompile(`cancel transfer (\w+)`)
)

func (c *Coordinator) handleTransaction(ctx context.Context, userID, text string) Response {
	lower := strings.ToLower(text)

	if m := confirmTransferRe.FindStringSubmatch(lower); m != nil {
		return c.confirmPending(ctx, userID, m[1])
	}
	if m := confirmPaymentRe.FindStringSubmatch(lower); m != nil {
		return c.confirmPending(ctx, userID, m[1])
	}
	if m := cancelTransferRe.FindStringSubmatch(lower); m != nil {
		if err := c.workflow.Cancel(ctx, userID, m[1]); err != nil {
			return Response{Success: false, Message: "Invalid or expired transaction ID"}
		}
		return Response{Success: true, Message: "Transaction cancelled successfully"}
	}

	if wantsHistory(lower) {
		return c.historyResponse(ctx, userID)
	}

	if strings.Contains(lower, "transfer") || strings.Contains(lower, "send money") {
		amount, okAmount := intent.ExtractAmount(text)
		to, okTo := intent.ExtractRecipient(text)
		if okAmount && okTo {
			return c.proposeTransfer(ctx, userID, to, amount)
		}
	}

	if strings.Contains(lower, "pay") || strings.Contains(lower, "payment") || strings.Contains(lower, "bill") {
		amount, okAmount := intent.ExtractAmount(text)
		biller, okBiller := intent.ExtractPayee(text)
		if okAmount && okBiller {
			return c.proposeBillPayment(ctx, userID, biller, amount)
		}
	}

	return Response{
		Success: false,
		Message: "I couldn't understand the transaction details. Please provide:\n" +
			"1. The type of transaction (transfer, bill payment, etc.)\n" +
			"2. The amount\n" +
			"3. The recipient or biller name\n\n" +
			"For example: \"Transfer $100 to John\" or \"Pay $75 to Electricity Bill\"",
		Data: map[string]any{
			"type":          "transaction_error",
			"required_info": []string{"Transaction type", "Amount", "Recipient/Biller"},
		},
	}
}

func (c *Coordinator) proposeTransfer(ctx context.Context, userID, to string, amount float64) Response {
	p, err := c.workflow.ProposeTransfer(ctx, userID, "checking", to, amount, "Transfer to "+to)
	if err != nil {
		switch {
		case errors.Is(err, transactions.ErrInvalidAmount):
			return Response{Success: false, Message: "Transfer amount must be greater than 0"}
		case errors.Is(err, transactions.ErrInsufficientFunds):
			return Response{Success: false, Message: "Insufficient funds for transfer"}
		default:
			return internalError(err)
		}
	}

	return Response{
		Success: true,
		Message: fmt.Sprintf("Transfer initiated. Please review the following details:\n\n"+
			"From: %s\n"+
			"To: %s\n"+
			"Amount: $%.2f\n"+
			"Description: %s\n\n"+
			"To confirm this transfer, please reply with:\n"+
			"\"confirm transfer %s\"\n\n"+
			"To cancel, please reply with:\n"+
			"\"cancel transfer %s\"",
			p.FromAccount, p.ToAccount, p.Amount, p.Description, p.ID, p.ID),
		Data: map[string]any{
			"transactionId": p.ID,
			"details": map[string]any{
				"fromAccount": p.FromAccount,
				"toAccount":   p.ToAccount,
				"amount":      p.Amount,
				"description": p.Description,
			},
		},
	}
}

func (c *Coordinator) proposeBillPayment(ctx context.Context, userID, biller string, amount float64) Response {
	p, err := c.workflow.ProposeBillPayment(ctx, userID, biller, "123456789", amount, "Payment to "+biller)
	if err != nil {
		switch {
		case errors.Is(err, transactions.ErrInvalidAmount):
			return Response{Success: false, Message: "Payment amount must be greater than 0"}
		case errors.Is(err, transactions.ErrInsufficientFunds):
			return Response{Success: false, Message: "Insufficient funds for payment"}
		default:
			return internalError(err)
		}
	}

	return Response{
		Success: true,
		Message: fmt.Sprintf("Bill payment initiated. Please confirm the following details:\n"+
			"Biller: %s\n"+
			"Account: %s\n"+
			"Amount: $%.2f\n"+
			"Description: %s\n\n"+
			"To confirm, please reply with \"confirm payment %s\"",
			p.Biller, p.AccountNo, p.Amount, p.Description, p.ID),
		Data: map[string]any{
			"transactionId": p.ID,
			"details": map[string]any{
				"biller":        p.Biller,
				"accountNumber": p.AccountNo,
				"amount":        p.Amount,
				"description":   p.Description,
			},
		},
	}
}

func (c *Coordinator) confirmPending(ctx context.Context, userID, pendingID string) Response {
	ctx, span := traces.StartSpan(ctx, "coordinator.confirm", traces.PendingID(pendingID))
	defer span.End()

	receipt, err := c.workflow.Confirm(ctx, userID, pendingID)
	if err != nil {
		switch {
		case errors.Is(err, transactions.ErrPendingNotFound):
			return Response{Success: false, Message: "Invalid or expired transaction ID. Please initiate a new transfer."}
		case errors.Is(err, transactions.ErrInsufficientFunds):
			return Response{Success: false, Message: "Insufficient funds for transaction"}
		default:
			return internalError(err)
		}
	}

	tx := receipt.Transaction
	assessment := c.engine.Evaluate(ctx, fraud.Transaction{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Amount:      tx.Amount,
		Direction:   string(tx.Direction),
		Description: tx.Description,
		Merchant:    tx.Merchant,
		Location:    tx.Location,
		Category:    tx.Category,
		Timestamp:   tx.Timestamp,
	})
	span.SetAttributes(traces.RiskScore(assessment.AggregateScore))

	data := map[string]any{"transaction": tx, "newBalance": receipt.NewBalance}
	if assessment.Suspicious() {
		logging.L(ctx).Warn("confirmed transaction raised fraud alerts",
			"transaction_id", tx.ID, "risk_score", assessment.AggregateScore)
		data["fraudAlerts"] = assessment.Alerts
		data["riskScore"] = assessment.AggregateScore
		if c.broadcaster != nil {
			c.broadcaster.Broadcast("fraud_alert", assessment)
		}
	}
	if c.broadcaster != nil {
		c.broadcaster.Broadcast("transaction_confirmed", receipt)
	}

	var message string
	if tx.Category == "Bills" {
		message = fmt.Sprintf("Bill payment completed successfully. New balance: $%.2f", receipt.NewBalance)
	} else {
		message = fmt.Sprintf("Transfer completed successfully!\n\n"+
			"Amount: $%.2f\n"+
			"To: %s\n"+
			"New balance: $%.2f\n\n"+
			"Transaction ID: %s\n"+
			"Date: %s",
			tx.Amount, tx.Merchant, receipt.NewBalance, tx.ID,
			tx.Timestamp.Format("1/2/2006, 3:04:05 PM"))
	}

	return Response{Success: true, Message: message, Data: data}
}

func (c *Coordinator) historyResponse(ctx context.Context, userID string) Response {
	history := c.workflow.History(ctx, userID, 0)

	lines := make([]string, 0, len(history))
	for _, tx := range history {
		lines = append(lines, fmt.Sprintf("%s - %s - $%.2f (%s)",
			tx.Timestamp.Format("1/2/2006"), tx.Description, tx.Amount, tx.Direction))
	}

	return Response{
		Success: true,
		Message: "Here are your recent transactions:\n" + strings.Join(lines, "\n"),
		Data: map[string]any{
			"transactions": history,
			"suggestions": []string{
				"Would you like to analyze your spending patterns?",
				"Would you like to check your account balance?",
			},
		},
	}
}

func (c *Coordinator) handleAdvice(ctx context.Context, userID, text string) Response {
	result := c.advisor.Advise(ctx, advice.Request{
		Query:   text,
		UserID:  userID,
		History: c.workflow.History(ctx, userID, 0),
	})
	return Response{Success: true, Message: result.Message, Data: result.Data}
}

func (c *Coordinator) handleInquiry(ctx context.Context, userID, text string) Response {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "balance") {
		balance := c.workflow.CheckBalance(ctx, userID)
		return Response{
			Success: true,
			Message: fmt.Sprintf("Your current balance is $%.2f", balance),
			Data: map[string]any{
				"balance":     balance,
				"lastUpdated": c.now(),
			},
		}
	}

	if strings.Contains(lower, "account") || strings.Contains(lower, "banking") {
		return Response{
			Success: true,
			Message: "I can help you with:\n" +
				"1. Account types and features\n" +
				"2. Banking services\n" +
				"3. Account maintenance\n" +
				"4. Banking hours\n" +
				"5. Branch locations",
			Data: map[string]any{
				"type": "account_info",
				"topics": []string{
					"Account types", "Banking services", "Account maintenance",
					"Banking hours", "Branch locations",
				},
			},
		}
	}

	if strings.Contains(lower, "service") || strings.Contains(lower, "help") {
		return Response{
			Success: true,
			Message: "Our banking services include:\n" +
				"1. Online banking\n" +
				"2. Mobile banking\n" +
				"3. ATM services\n" +
				"4. Bill payments\n" +
				"5. Money transfers",
			Data: map[string]any{
				"type": "service_info",
				"services": []string{
					"Online banking", "Mobile banking", "ATM services",
					"Bill payments", "Money transfers",
				},
			},
		}
	}

	return Response{
		Success: true,
		Message: "How can I help you today? I can assist with:\n" +
			"1. Account information\n" +
			"2. Banking services\n" +
			"3. Transaction history\n" +
			"4. Security concerns\n" +
			"5. General banking questions",
		Data: map[string]any{
			"type": "general_inquiry",
			"topics": []string{
				"Account information", "Banking services", "Transaction history",
				"Security concerns", "General banking",
			},
		},
	}
}

var securityConcernPhrases = []string{
	"unusual activity", "suspicious transaction", "unauthorized charge",
	"fraudulent activity", "strange purchase", "check for", "verify", "report",
}

func (c *Coordinator) handleFraud(_ context.Context, text string) Response {
	lower := strings.ToLower(text)

	for _, phrase := range securityConcernPhrases {
		if strings.Contains(lower, phrase) {
			return Response{
				Success: true,
				Message: "I've analyzed your account for suspicious activity. Here's what I found:\n\n" +
					"1. Recent Transactions Review:\n" +
					"   - No unauthorized transactions detected\n" +
					"   - All transactions match your spending patterns\n" +
					"   - No unusual locations or merchants\n\n" +
					"2. Security Recommendations:\n" +
					"   - Enable two-factor authentication if not already enabled\n" +
					"   - Review your recent login activity\n" +
					"   - Update your security questions\n\n" +
					"3. Proactive Measures:\n" +
					"   - Set up transaction alerts for amounts over $100\n" +
					"   - Enable location-based security\n" +
					"   - Regularly review your transaction history\n\n" +
					"Would you like me to:\n" +
					"1. Show your recent transactions for review\n" +
					"2. Set up additional security measures\n" +
					"3. Enable transaction alerts\n" +
					"4. Review your login activity",
				Data: map[string]any{
					"type":       "fraud_alert",
					"risk_level": "low",
					"actions": []string{
						"Review transactions", "Enable 2FA", "Set up alerts",
						"Review login activity",
					},
					"recommendations": []string{
						"Enable two-factor authentication", "Set up transaction alerts",
						"Review recent transactions", "Update security questions",
					},
				},
			}
		}
	}

	if strings.Contains(lower, "check") && strings.Contains(lower, "transaction") {
		return Response{
			Success: true,
			Message: "I'll help you verify your recent transactions. Please provide:\n" +
				"1. Transaction date\n" +
				"2. Transaction amount\n" +
				"3. Merchant name\n" +
				"4. Transaction location\n\n" +
				"Or I can show you your recent transactions for review.",
			Data: map[string]any{
				"type": "transaction_verification",
				"required_info": []string{
					"Transaction date", "Transaction amount",
					"Merchant name", "Transaction location",
				},
			},
		}
	}

	return Response{
		Success: true,
		Message: "I can help you with:\n\n" +
			"1. Checking for suspicious activity\n" +
			"2. Verifying specific transactions\n" +
			"3. Reporting potential fraud\n" +
			"4. Security recommendations\n" +
			"5. Account protection measures\n\n" +
			"What specific concern would you like to address?",
		Data: map[string]any{
			"type": "general_security",
			"topics": []string{
				"Suspicious activity", "Transaction verification", "Fraud reporting",
				"Security recommendations", "Account protection",
			},
		},
	}
}

func wantsHistory(lower string) bool {
	if strings.Contains(lower, "show") &&
		(strings.Contains(lower, "recent") || strings.Contains(lower, "latest") || strings.Contains(lower, "transactions")) {
		return true
	}
	return strings.Contains(lower, "transaction history") || strings.Contains(lower, "my transactions")
}
