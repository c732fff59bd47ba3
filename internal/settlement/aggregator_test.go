package settlement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/retry"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

func newTestService(t *testing.T) (*Service, *spapi.MockClient) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&erp.LedgerAccount{}))

	client := spapi.NewMockClient()
	caller := &retry.Caller{MaxRetries: 2, Interval: time.Millisecond}
	acc := &account.Account{
		Name:                    "amazon-us",
		Company:                 "Acme Retail Ltd",
		BaseCurrency:            "USD",
		MarketplaceAccountGroup: "Amazon Fees - ARL",
	}

	return NewService(client, caller, erp.NewDatabase(db), acc), client
}

func group(id string) spapi.FinancialEventGroup {
	return spapi.FinancialEventGroup{
		FinancialEventGroupID: id,
		ProcessingStatus:      "Closed",
		FundTransferStatus:    "Succeeded",
	}
}

func shipment(orderID string, charge, fee, promo float64) spapi.ShipmentEvent {
	item := spapi.ShipmentItem{SellerSKU: "SKU-1"}
	if charge != 0 {
		item.ItemCharges = []spapi.ChargeComponent{
			{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: charge}},
		}
	}
	if fee != 0 {
		item.ItemFees = []spapi.FeeComponent{
			{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: fee}},
		}
	}
	if promo != 0 {
		item.Promotions = []spapi.Promotion{
			{PromotionType: "Shipping", PromotionAmount: spapi.Money{CurrencyCode: "USD", Amount: promo}},
		}
	}
	return spapi.ShipmentEvent{AmazonOrderID: orderID, ShipmentItems: []spapi.ShipmentItem{item}}
}

func TestComputeNetPayoutNetsEventCategories(t *testing.T) {
	svc, client := newTestService(t)

	client.AddEventGroup(group("GRP-1"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 100, 10, 5)},
		AdjustmentEventList: []spapi.AdjustmentEvent{{
			AdjustmentType: "ReserveCredit",
			AdjustmentItems: []spapi.AdjustmentItem{
				{AmazonOrderID: "111-1", AdjustmentAmount: spapi.Money{CurrencyCode: "USD", Amount: 3}},
				{AmazonOrderID: "111-other", AdjustmentAmount: spapi.Money{CurrencyCode: "USD", Amount: 99}},
			},
		}},
		ServiceFeeEventList: []spapi.ServiceFeeEvent{{
			AmazonOrderID: "111-1",
			Fees: []spapi.FeeComponent{
				{FeeType: "Subscription", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: 2}},
			},
		}},
	})

	payout, err := svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	// 100 - 10 - 5 + 3 - 2
	assert.InDelta(t, 86, payout.Amount, 0.001)
	assert.Equal(t, "GRP-1", payout.SettlementID)
}

func TestComputeNetPayoutNotYetSettled(t *testing.T) {
	svc, client := newTestService(t)

	// No group references the order at all
	client.AddEventGroup(group("GRP-1"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-other", 50, 5, 0)},
	})

	payout, err := svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	assert.Zero(t, payout.Amount)
	assert.Empty(t, payout.SettlementID)

	// Matched events netting to a non-positive total are still not settled
	client.AddEventGroup(group("GRP-2"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 10, 15, 0)},
	})

	payout, err = svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	assert.Zero(t, payout.Amount)
	assert.Empty(t, payout.SettlementID)
}

func TestComputeNetPayoutFirstPositiveGroupWins(t *testing.T) {
	svc, client := newTestService(t)

	client.AddEventGroup(group("GRP-1"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 10, 15, 0)},
	})
	client.AddEventGroup(group("GRP-2"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 40, 5, 0)},
	})
	client.AddEventGroup(group("GRP-3"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 60, 0, 0)},
	})

	payout, err := svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	assert.InDelta(t, 35, payout.Amount, 0.001)
	assert.Equal(t, "GRP-2", payout.SettlementID)
}

func TestComputeNetPayoutSumsAcrossEventPages(t *testing.T) {
	svc, client := newTestService(t)
	client.PageSize = 1

	client.AddEventGroup(group("GRP-1"),
		spapi.FinancialEvents{ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 30, 2, 0)}},
		spapi.FinancialEvents{ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 20, 3, 0)}},
	)

	payout, err := svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	assert.InDelta(t, 45, payout.Amount, 0.001)
	assert.Equal(t, "GRP-1", payout.SettlementID)
}

func TestComputeNetPayoutRetriesTransientFailures(t *testing.T) {
	svc, client := newTestService(t)

	client.AddEventGroup(group("GRP-1"), spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{shipment("111-1", 25, 0, 0)},
	})
	client.FailNext("ListFinancialEventGroups", 1, &spapi.APIError{
		Code: "RequestThrottled", Description: "slow down",
	})

	payout, err := svc.ComputeNetPayout("111-1")
	require.NoError(t, err)
	assert.InDelta(t, 25, payout.Amount, 0.001)
	assert.Equal(t, 2, client.Calls("ListFinancialEventGroups"))
}

func TestComputeNetPayoutEscalatesExhaustion(t *testing.T) {
	svc, client := newTestService(t)

	client.FailNext("ListFinancialEventGroups", 2, &spapi.APIError{
		Code: "QuotaExceeded", Description: "quota",
	})

	_, err := svc.ComputeNetPayout("111-1")
	require.Error(t, err)
	assert.True(t, retry.IsExhausted(err))
}

func TestChargesAndFeesBuildsTaxLines(t *testing.T) {
	svc, client := newTestService(t)

	client.AddOrderEvents("111-1", spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{{
			AmazonOrderID: "111-1",
			ShipmentItems: []spapi.ShipmentItem{{
				SellerSKU: "SKU-RED-MUG",
				ItemCharges: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 29.98}},
					{ChargeType: "Tax", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 2.40}},
					{ChargeType: "GiftWrap", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 0}},
				},
				ItemFees: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: 4.50}},
				},
			}},
		}},
	})

	lines, err := svc.ChargesAndFees("111-1")
	require.NoError(t, err)

	// Principal and zero-amount charges are excluded
	require.Len(t, lines, 2)
	assert.Equal(t, "Amazon Tax", lines[0].AccountHead)
	assert.Equal(t, "Tax for SKU-RED-MUG", lines[0].Description)
	assert.InDelta(t, 2.40, lines[0].Amount, 0.001)
	assert.Equal(t, "Amazon Commission", lines[1].AccountHead)
	assert.InDelta(t, 4.50, lines[1].Amount, 0.001)

	// The posting accounts were auto-created under the marketplace group
	acct, err := svc.erpDB.GetLedgerAccount("Amazon Commission")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "Amazon Fees - ARL", acct.ParentAccount)
}

func TestRefundAmount(t *testing.T) {
	svc, client := newTestService(t)

	client.AddOrderEvents("111-1", spapi.FinancialEvents{
		RefundEventList: []spapi.RefundEvent{{
			AmazonOrderID: "111-1",
			RefundItems: []spapi.RefundItem{{
				SellerSKU: "SKU-1",
				ItemChargeAdjustments: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: -25}},
					{ChargeType: "Tax", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: -2}},
				},
				ItemFeeAdjustments: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: -3}},
				},
			}},
		}},
	})

	refund, err := svc.RefundAmount("111-1")
	require.NoError(t, err)
	// -(-25 - 2 - (-3)) = 24
	assert.InDelta(t, 24, refund, 0.001)
}

func TestRefundAmountZeroWhenNothingRefunded(t *testing.T) {
	svc, client := newTestService(t)

	refund, err := svc.RefundAmount("111-1")
	require.NoError(t, err)
	assert.Zero(t, refund)

	// A net-positive adjustment is not a refund
	client.AddOrderEvents("111-1", spapi.FinancialEvents{
		RefundEventList: []spapi.RefundEvent{{
			AmazonOrderID: "111-1",
			RefundItems: []spapi.RefundItem{{
				ItemChargeAdjustments: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 5}},
				},
			}},
		}},
	})

	refund, err = svc.RefundAmount("111-1")
	require.NoError(t, err)
	assert.Zero(t, refund)
}
