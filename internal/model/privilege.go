package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "order:cancel"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

const (
	PrivOrderViewAll     = "order:view_all"
	PrivOrderCancel      = "order:cancel"
	PrivOrderFulfil      = "order:fulfil"
	PrivPaymentApprove   = "payment:approve"
	PrivReconcileTrigger = "payment:reconcile"
	PrivProductCreate    = "product:create"
	PrivProductUpdate    = "product:update"
	PrivProductRestock   = "product:restock"
	PrivUserPrivileges   = "user:update_privilege"
	PrivDashboardView    = "dashboard:view"
)

var DefaultPrivileges = []Privilege{
	{Code: PrivOrderViewAll, Name: "View All Orders"},
	{Code: PrivOrderCancel, Name: "Cancel Any Order"},
	{Code: PrivOrderFulfil, Name: "Fulfil Orders"},
	{Code: PrivPaymentApprove, Name: "Approve Sandbox Payments"},
	{Code: PrivReconcileTrigger, Name: "Sync Payment Status"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductRestock, Name: "Restock Product"},
	{Code: PrivUserPrivileges, Name: "Update User Privileges"},
	{Code: PrivDashboardView, Name: "View Dashboard"},
}
