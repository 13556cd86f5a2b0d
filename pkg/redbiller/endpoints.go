package redbiller

// Functional areas of the Redbiller API.
const (
	AreaAirtime     = "airtime"
	AreaData        = "data"
	AreaCable       = "cable"
	AreaElectricity = "electricity"
	AreaInternet    = "internet"
	AreaBetting     = "betting"
)

// Operations within an area.
const (
	OpValidate       = "validate"
	OpPlansList      = "plans_list"
	OpPurchaseCreate = "purchase_create"
	OpPurchaseStatus = "purchase_status"
	OpPurchaseList   = "purchase_list"
	OpPurchaseRetry  = "purchase_retry"
	OpRetriedTrail   = "retried_trail"
)

// Redbiller environment hosts.
const (
	HostLive = "https://api.live.redbiller.com"
	HostTest = "https://api.test.redbiller.com"
)

// DefaultVersions returns the API version pinned per functional area.
func DefaultVersions() map[string]string {
	return map[string]string{
		AreaAirtime:     "1.0",
		AreaData:        "1.0",
		AreaCable:       "1.0",
		AreaElectricity: "1.0",
		AreaInternet:    "1.0",
		AreaBetting:     "1.0",
	}
}

// DefaultEndpoints returns the path template table. Full paths are built by
// substituting the area version for {v}.
func DefaultEndpoints() map[string]map[string]string {
	return map[string]map[string]string{
		AreaAirtime: {
			OpPurchaseCreate: "/{v}/bills/airtime/purchase/create",
			OpPurchaseStatus: "/{v}/bills/airtime/purchase/status",
			OpPurchaseList:   "/{v}/bills/airtime/purchase/list",
			OpPurchaseRetry:  "/{v}/bills/airtime/purchase/retry",
			OpRetriedTrail:   "/{v}/bills/airtime/purchase/get-retried-trail",
		},
		AreaData: {
			OpPlansList:      "/{v}/bills/data/plans/list",
			OpPurchaseCreate: "/{v}/bills/data/plans/purchase/create",
			OpPurchaseStatus: "/{v}/bills/data/plans/purchase/status",
			OpPurchaseList:   "/{v}/bills/data/plans/purchase/list",
		},
		AreaCable: {
			OpValidate:       "/{v}/bills/cable/validate",
			OpPlansList:      "/{v}/bills/cable/plans/list",
			OpPurchaseCreate: "/{v}/bills/cable/plans/purchase/create",
			OpPurchaseStatus: "/{v}/bills/cable/purchase/status",
			OpPurchaseList:   "/{v}/bills/cable/purchase/list",
		},
		AreaElectricity: {
			OpValidate:       "/{v}/bills/electricity/validate",
			OpPurchaseCreate: "/{v}/bills/electricity/purchase/create",
			OpPurchaseStatus: "/{v}/bills/electricity/purchase/status",
			OpPurchaseList:   "/{v}/bills/electricity/purchase/list",
		},
		AreaInternet: {
			OpPlansList:      "/{v}/bills/internet/plans/list",
			OpPurchaseCreate: "/{v}/bills/internet/purchase/create",
			OpPurchaseStatus: "/{v}/bills/internet/purchase/status",
		},
		AreaBetting: {
			OpPurchaseCreate: "/{v}/bills/betting/purchase/create",
			OpPurchaseStatus: "/{v}/bills/betting/purchase/status",
		},
	}
}
