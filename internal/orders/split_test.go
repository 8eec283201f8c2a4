package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/shared"
)

func seedParent(f *fixture, lines ...netsuite.OrderLine) {
	f.gateway.addOrder(netsuite.SalesOrder{
		ID:               "100",
		TranID:           "SO-100",
		OtherRefNum:      "PO-9",
		TranDate:         "2024-05-01T00:00:00Z",
		Entity:           &netsuite.Ref{ID: "77", RefName: "PT Maju"},
		Location:         &netsuite.Ref{ID: "3"},
		ShipAddressList:  &netsuite.Ref{ID: "9001"},
		ReqInvMac5:       "T",
		EstimateContract: "EC-1",
		SOMemo2:          "handle with care",
		AllMemo:          "priority",
	}, lines...)
}

func splitRequest(items ...SplitItem) SplitRequest {
	return SplitRequest{SplitItems: items, SplitReason: "partial stock", CreatedBy: "rani"}
}

func TestCreateSplitReducesParentLine(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10", Rate: "100"})

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(
		SplitItem{ItemID: "42", Quantity: "4", Rate: "100", Description: "Widget"},
	))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "101", result.NewOrderID)
	assert.Equal(t, "SOV2405001", result.NewOrderNumber)

	qty, ok := f.gateway.lineQuantity("100", lineHref("100", 1))
	require.True(t, ok, "parent line must be kept")
	assert.Equal(t, "6", qty)
	assert.Empty(t, f.gateway.deleted)

	require.Len(t, f.gateway.createdLines["101"], 1)
	assert.Equal(t, netsuite.Patch{
		"item":        netsuite.RefPatch{ID: 42},
		"quantity":    4.0,
		"rate":        100.0,
		"description": "Widget",
	}, f.gateway.createdLines["101"][0])

	require.Len(t, f.lineage.records, 1)
	assert.Equal(t, "100", f.lineage.records[0].ParentOrderID)
	assert.Equal(t, "101", f.lineage.records[0].ChildOrderID)
	assert.Equal(t, "rani", f.lineage.records[0].CreatedBy)
	assert.Equal(t, "partial stock", f.lineage.records[0].SplitReason)

	require.Len(t, f.publisher.msgs, 1)
	assert.Contains(t, f.publisher.msgs[0].Text, "SOV2405001")
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "order.split", f.audit.entries[0].Action)
}

func TestCreateSplitFullQuantityDeletesParentLine(t *testing.T) {
	f := newFixture()
	seedParent(f,
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "3"},
		netsuite.OrderLine{Item: itemRef("43"), Quantity: "5"},
	)

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(SplitItem{ItemID: "42", Quantity: "3"}))
	require.NoError(t, err)

	assert.Equal(t, []string{lineHref("100", 1)}, f.gateway.deleted)
	_, ok := f.gateway.lineQuantity("100", lineHref("100", 1))
	assert.False(t, ok)
	assert.Empty(t, f.gateway.linePatches)

	parentHistory, err := f.lineage.HistoryFor(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, parentHistory, 1)
	childHistory, err := f.lineage.HistoryFor(context.Background(), result.NewOrderID)
	require.NoError(t, err)
	assert.Equal(t, parentHistory, childHistory)
}

func TestCreateSplitSpreadsAcrossLinesOfTheSameItem(t *testing.T) {
	f := newFixture()
	seedParent(f,
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "5"},
		netsuite.OrderLine{Item: itemRef("43"), Quantity: "2"},
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "5"},
	)

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(SplitItem{ItemID: "42", Quantity: "8"}))
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, []string{lineHref("100", 1)}, f.gateway.deleted)
	qty, ok := f.gateway.lineQuantity("100", lineHref("100", 3))
	require.True(t, ok)
	assert.Equal(t, "2", qty)
	qty, ok = f.gateway.lineQuantity("100", lineHref("100", 2))
	require.True(t, ok)
	assert.Equal(t, "2", qty)

	require.Len(t, f.gateway.createdLines["101"], 1)
	assert.Equal(t, 8.0, f.gateway.createdLines["101"][0]["quantity"])
}

func TestCreateSplitOverSplitNamesTotalAcrossLines(t *testing.T) {
	f := newFixture()
	seedParent(f,
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "5"},
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "5"},
	)

	_, err := f.service.CreateSplit(context.Background(), "100", splitRequest(SplitItem{ItemID: "42", Quantity: "11"}))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "only 10 remain across 2 parent line(s)")
	assert.Empty(t, f.gateway.createdOrders)
}

func TestCreateSplitUsesBodyParentID(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})

	req := splitRequest(SplitItem{ItemID: "42", Quantity: "1"})
	req.ParentOrderID = "100"
	result, err := f.service.CreateSplit(context.Background(), "", req)
	require.NoError(t, err)
	assert.Equal(t, "100", result.ParentOrderID)
}

func TestCreateSplitRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  SplitRequest
	}{
		{"no items", splitRequest()},
		{"zero quantity", splitRequest(SplitItem{ItemID: "42", Quantity: "0"})},
		{"negative quantity", splitRequest(SplitItem{ItemID: "42", Quantity: "-2"})},
		{"blank quantity", splitRequest(SplitItem{ItemID: "42"})},
		{"missing item", splitRequest(SplitItem{Quantity: "1"})},
		{"missing actor", SplitRequest{SplitItems: []SplitItem{{ItemID: "42", Quantity: "1"}}}},
		{"over split", splitRequest(SplitItem{ItemID: "42", Quantity: "11"})},
		{"over split across entries", splitRequest(SplitItem{ItemID: "42", Quantity: "6"}, SplitItem{ItemID: "42", Quantity: "5"})},
		{"unknown item", splitRequest(SplitItem{ItemID: "999", Quantity: "1"})},
		{"non-numeric rate", splitRequest(SplitItem{ItemID: "42", Quantity: "1", Rate: "abc"})},
		{"non-numeric discount", splitRequest(SplitItem{ItemID: "42", Quantity: "1", Discount: "10%"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})

			_, err := f.service.CreateSplit(context.Background(), "100", tc.req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.gateway.createdOrders)
			assert.Empty(t, f.gateway.linePatches)
			assert.Empty(t, f.lineage.records)
		})
	}
}

func TestCreateSplitNamesInvalidNumericFields(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})

	_, err := f.service.CreateSplit(context.Background(), "100", splitRequest(
		SplitItem{ItemID: "42", Quantity: "1", Rate: "abc", Discount: "2.5"},
	))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "splitItems[0].rate must be a number")
	assert.NotContains(t, err.Error(), "custcol_ice_ld_discount")
}

func TestCreateSplitPartialFailureIsReported(t *testing.T) {
	f := newFixture()
	seedParent(f,
		netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"},
		netsuite.OrderLine{Item: itemRef("43"), Quantity: "10"},
	)
	f.gateway.createLineFailAt = 2
	f.gateway.createLineErr = errRemote

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(
		SplitItem{ItemID: "42", Quantity: "2"},
		SplitItem{ItemID: "43", Quantity: "2"},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, errRemote)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "101", result.NewOrderID)
	assert.Contains(t, result.Logs, "Line 2 (item 43): create failed: Invalid field value (status 400)")

	qty, _ := f.gateway.lineQuantity("100", lineHref("100", 1))
	assert.Equal(t, "10", qty, "parent is untouched when child lines fail")
	require.Len(t, f.lineage.records, 1, "the created child order is still linked")
	assert.Empty(t, f.publisher.msgs)
}

func TestCreateSplitCreateOrderFailure(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})
	f.gateway.createOrderErr = &netsuite.RemoteError{Status: 502, Message: "bad gateway"}

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(SplitItem{ItemID: "42", Quantity: "1"}))
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.NewOrderID)
	assert.Empty(t, f.lineage.records)
}

func TestCreateSplitPersistenceFailureKeepsERPChanges(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})
	f.lineage.err = errors.New("connection reset")

	result, err := f.service.CreateSplit(context.Background(), "100", splitRequest(SplitItem{ItemID: "42", Quantity: "4"}))
	require.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, result)
	assert.Equal(t, "101", result.NewOrderID)
	assert.Contains(t, result.Logs, "Split history could not be recorded")

	qty, _ := f.gateway.lineQuantity("100", lineHref("100", 1))
	assert.Equal(t, "6", qty)
}

func TestCreateSplitIdempotencyKey(t *testing.T) {
	f := newFixture()
	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})

	req := splitRequest(SplitItem{ItemID: "42", Quantity: "1"})
	req.IdempotencyKey = "k-1"

	_, err := f.service.CreateSplit(context.Background(), "100", req)
	require.NoError(t, err)
	_, err = f.service.CreateSplit(context.Background(), "100", req)
	assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, f.gateway.createdOrders, 1)
}

func TestCreateSplitFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture()
	req := splitRequest(SplitItem{ItemID: "42", Quantity: "1"})
	req.IdempotencyKey = "k-2"

	_, err := f.service.CreateSplit(context.Background(), "404", req)
	require.ErrorIs(t, err, netsuite.ErrNotFound)
	assert.Equal(t, []string{moduleSplit + "/k-2"}, f.idempotency.deleted)

	seedParent(f, netsuite.OrderLine{Item: itemRef("42"), Quantity: "10"})
	_, err = f.service.CreateSplit(context.Background(), "100", req)
	assert.NoError(t, err)
}

func TestBuildSplitHeader(t *testing.T) {
	parent := &netsuite.SalesOrder{
		ID:               "100",
		TranID:           "SO-100",
		TranDate:         "2024-05-01T00:00:00Z",
		Entity:           &netsuite.Ref{ID: "77"},
		Location:         &netsuite.Ref{ID: "3"},
		ShipAddressList:  &netsuite.Ref{ID: "9001"},
		ReqInvMac5:       "false",
		EstimateContract: "EC-1",
		AllMemo:          "priority",
	}

	header := buildSplitHeader(parent, "SOV2405007", "stock")
	assert.Equal(t, netsuite.Patch{
		"entity":                        netsuite.RefPatch{ID: 77},
		"tranDate":                      "2024-05-01",
		"location":                      netsuite.RefPatch{ID: 3},
		"shipAddressList":               netsuite.RefPatch{ID: 9001},
		"custbody_ar_req_inv_mac5":      false,
		"custbody_ar_estimate_contrat1": "EC-1",
		"memo":                          "Split from SO SO-100 (SOV2405007)",
		"otherRefNum":                   "SO-100-SPLIT",
		"custbody_ar_all_memo":          "priority | Split SOV2405007 from SO-100 | Reason: stock",
	}, header)

	parent.OtherRefNum = "PO-9"
	assert.Equal(t, "PO-9-SPLIT", buildSplitHeader(parent, "SOV2405008", "")["otherRefNum"])
}
