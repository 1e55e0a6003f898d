package constants

// 合作方类型
const (
	PartnerTypeLoan       = "loan"
	PartnerTypeCreditCard = "credit_card"
	PartnerTypeBroker     = "broker"
)

// 佣金结构类型
const (
	CommissionTypeFixed      = "fixed"
	CommissionTypePercentage = "percentage"
)

// 转化目标
const (
	ConversionGoalFirstTransaction = "first_transaction"
)

// 转化类型（贷款漏斗）
const (
	ConversionTypeApplicationSubmitted = "application_submitted"
	ConversionTypeApplicationApproved  = "application_approved"
	ConversionTypeLoanDisbursed        = "loan_disbursed"
	ConversionTypeFirstEMIPaid         = "first_emi_paid"
)

// 漏斗阶段
const (
	FunnelStageInitiated          = "initiated"
	FunnelStageRedirected         = "redirected"
	FunnelStageDocumentsSubmitted = "documents_submitted"
	FunnelStageUnderReview        = "under_review"
	FunnelStageApproved           = "approved"
	FunnelStageRejected           = "rejected"
	FunnelStageFirstTransaction   = "first_transaction"
)

// 点击派生状态
const (
	ClickStatusPending   = "pending"
	ClickStatusConverted = "converted"
	ClickStatusRejected  = "rejected"
	ClickStatusExpired   = "expired"
)

// 队列名称
const (
	QueueDefault       = "default"
	QueueNotifications = "notifications"
)

// 异步任务类型
const (
	TaskPartnerNotifyClick      = "partner:notify_click"
	TaskPartnerNotifyConversion = "partner:notify_conversion"
)
