package settlement

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/retry"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

// Service nets marketplace financial events into per-order payouts. All
// marketplace reads go through the retry caller.
type Service struct {
	client spapi.Client
	caller *retry.Caller
	erpDB  *erp.Database
	acc    *account.Account
}

func NewService(client spapi.Client, caller *retry.Caller, erpDB *erp.Database, acc *account.Account) *Service {
	return &Service{
		client: client,
		caller: caller,
		erpDB:  erpDB,
		acc:    acc,
	}
}

// NetPayout is the actual cash amount attributable to one order after fees,
// promotions and adjustments are netted from gross charges, attached to the
// settlement group the matching events were found in
type NetPayout struct {
	Amount       float64 `json:"amount"`
	SettlementID string  `json:"settlement_id"`
}

// ComputeNetPayout walks every settlement group in fetch order, nets the
// five event categories for events referencing orderID, and returns the
// first group whose matched total is positive. A matched total of zero or
// below means "not yet settled" and scanning continues; if no group
// qualifies the payout is (0, none).
func (s *Service) ComputeNetPayout(orderID string) (*NetPayout, error) {
	logger := log.With().
		Str("order_id", orderID).
		Str("service", "settlement").
		Logger()

	groups, err := s.listAllEventGroups()
	if err != nil {
		return nil, fmt.Errorf("failed to list financial event groups: %w", err)
	}

	logger.Debug().Int("group_count", len(groups)).Msg("scanning settlement groups for order payout")

	for _, group := range groups {
		total := 0.0
		found := false

		nextToken := ""
		for {
			groupID, token := group.FinancialEventGroupID, nextToken
			payload, err := retry.Do(s.caller, "ListFinancialEventsByGroup", func() (*spapi.FinancialEventsPayload, error) {
				return s.client.ListFinancialEventsByGroup(groupID, token)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to list financial events for group %s: %w", groupID, err)
			}

			pageTotal, pageFound := netEvents(&payload.FinancialEvents, orderID)
			total += pageTotal
			found = found || pageFound

			if payload.NextToken == "" {
				break
			}
			nextToken = payload.NextToken
		}

		if found && total > 0 {
			logger.Info().
				Str("settlement_id", group.FinancialEventGroupID).
				Float64("net_payout", total).
				Msg("order payout settled")
			return &NetPayout{Amount: total, SettlementID: group.FinancialEventGroupID}, nil
		}

		if found {
			logger.Debug().
				Str("settlement_id", group.FinancialEventGroupID).
				Float64("matched_total", total).
				Msg("matched events net to a non-positive total, not yet settled")
		}
	}

	logger.Debug().Msg("no settlement group yielded a positive payout for order")
	return &NetPayout{}, nil
}

func (s *Service) listAllEventGroups() ([]spapi.FinancialEventGroup, error) {
	var groups []spapi.FinancialEventGroup

	nextToken := ""
	for {
		token := nextToken
		payload, err := retry.Do(s.caller, "ListFinancialEventGroups", func() (*spapi.FinancialEventGroupsPayload, error) {
			return s.client.ListFinancialEventGroups(token)
		})
		if err != nil {
			return nil, err
		}

		groups = append(groups, payload.FinancialEventGroups...)

		if payload.NextToken == "" {
			return groups, nil
		}
		nextToken = payload.NextToken
	}
}

// netEvents folds one page of events into the signed running total for the
// order. The boolean reports whether any event on the page referenced the
// order at all. Sign rules: item charges accrue, item fees and promotions
// deduct; refund charge adjustments accrue (they carry their own sign) and
// refund fee adjustments deduct; adjustments accrue; service fees deduct;
// chargeback charges accrue.
func netEvents(events *spapi.FinancialEvents, orderID string) (float64, bool) {
	total := 0.0
	found := false

	for _, ev := range events.ShipmentEventList {
		if ev.AmazonOrderID != orderID {
			continue
		}
		found = true
		for _, item := range ev.ShipmentItems {
			for _, charge := range item.ItemCharges {
				total += charge.ChargeAmount.Amount
			}
			for _, fee := range item.ItemFees {
				total -= fee.FeeAmount.Amount
			}
			for _, promo := range item.Promotions {
				total -= promo.PromotionAmount.Amount
			}
		}
	}

	for _, ev := range events.RefundEventList {
		if ev.AmazonOrderID != orderID {
			continue
		}
		found = true
		for _, item := range ev.RefundItems {
			for _, charge := range item.ItemChargeAdjustments {
				total += charge.ChargeAmount.Amount
			}
			for _, fee := range item.ItemFeeAdjustments {
				total -= fee.FeeAmount.Amount
			}
		}
	}

	// Adjustment events carry the order id per line, not per event
	for _, ev := range events.AdjustmentEventList {
		for _, item := range ev.AdjustmentItems {
			if item.AmazonOrderID != orderID {
				continue
			}
			found = true
			total += item.AdjustmentAmount.Amount
		}
	}

	for _, ev := range events.ServiceFeeEventList {
		if ev.AmazonOrderID != orderID {
			continue
		}
		found = true
		for _, fee := range ev.Fees {
			total -= fee.FeeAmount.Amount
		}
	}

	for _, ev := range events.ChargebackEventList {
		if ev.AmazonOrderID != orderID {
			continue
		}
		found = true
		for _, item := range ev.ShipmentItems {
			for _, charge := range item.ItemCharges {
				total += charge.ChargeAmount.Amount
			}
		}
	}

	return total, found
}

// ChargesAndFees builds invoice tax lines from the order's detailed
// financial-event breakdown: non-zero item charges (excluding Principal,
// which is already the line rate) and non-zero item fees, each posted to an
// auto-created "Amazon <Type>" ledger account.
func (s *Service) ChargesAndFees(orderID string) ([]erp.TaxLine, error) {
	var lines []erp.TaxLine

	nextToken := ""
	for {
		token := nextToken
		payload, err := retry.Do(s.caller, "ListFinancialEventsByOrder", func() (*spapi.FinancialEventsPayload, error) {
			return s.client.ListFinancialEventsByOrder(orderID, token)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list financial events for order %s: %w", orderID, err)
		}

		for _, ev := range payload.FinancialEvents.ShipmentEventList {
			if ev.AmazonOrderID != orderID {
				continue
			}
			for _, item := range ev.ShipmentItems {
				for _, charge := range item.ItemCharges {
					if charge.ChargeAmount.Amount == 0 || charge.ChargeType == spapi.ChargeTypePrincipal {
						continue
					}
					line, err := s.taxLine(charge.ChargeType, item.SellerSKU, charge.ChargeAmount.Amount)
					if err != nil {
						return nil, err
					}
					lines = append(lines, *line)
				}
				for _, fee := range item.ItemFees {
					if fee.FeeAmount.Amount == 0 {
						continue
					}
					line, err := s.taxLine(fee.FeeType, item.SellerSKU, fee.FeeAmount.Amount)
					if err != nil {
						return nil, err
					}
					lines = append(lines, *line)
				}
			}
		}

		if payload.NextToken == "" {
			return lines, nil
		}
		nextToken = payload.NextToken
	}
}

func (s *Service) taxLine(chargeType, sku string, amount float64) (*erp.TaxLine, error) {
	acct, err := s.erpDB.GetOrCreateLedgerAccount(
		"Amazon "+chargeType,
		s.acc.Company,
		s.acc.MarketplaceAccountGroup,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger account for %s: %w", chargeType, err)
	}

	return &erp.TaxLine{
		ChargeType:  "Actual",
		AccountHead: acct.Name,
		Amount:      amount,
		Description: fmt.Sprintf("%s for %s", chargeType, sku),
	}, nil
}

// RefundAmount nets the order's refund events into the amount to pay back.
// Charge adjustments carry their own (negative) sign, so the refund is the
// negated net; a non-positive result means there is nothing to refund.
func (s *Service) RefundAmount(orderID string) (float64, error) {
	net := 0.0

	nextToken := ""
	for {
		token := nextToken
		payload, err := retry.Do(s.caller, "ListFinancialEventsByOrder", func() (*spapi.FinancialEventsPayload, error) {
			return s.client.ListFinancialEventsByOrder(orderID, token)
		})
		if err != nil {
			return 0, fmt.Errorf("failed to list financial events for order %s: %w", orderID, err)
		}

		for _, ev := range payload.FinancialEvents.RefundEventList {
			if ev.AmazonOrderID != orderID {
				continue
			}
			for _, item := range ev.RefundItems {
				for _, charge := range item.ItemChargeAdjustments {
					net += charge.ChargeAmount.Amount
				}
				for _, fee := range item.ItemFeeAdjustments {
					net -= fee.FeeAmount.Amount
				}
			}
		}

		if payload.NextToken == "" {
			break
		}
		nextToken = payload.NextToken
	}

	refund := -net
	if refund <= 0 {
		return 0, nil
	}
	return refund, nil
}
