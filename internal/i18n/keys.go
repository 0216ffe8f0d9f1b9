package i18n

// Message keys. Every key is bundled for every locale.
const (
	KeyUnknownCommand    = "unknown_command"
	KeyProcessingError   = "processing_error"
	KeyGenericError      = "generic_error"
	KeyLoginRequired     = "login_required"
	KeyPermissionDenied  = "permission_denied"
	KeyHelp              = "help"
	KeyLoginInstructions = "login_instructions"
	KeyLoggedOut         = "logged_out"
	KeyNoSession         = "no_session"
	KeyCancelled         = "cancelled"
	KeyNothingToCancel   = "nothing_to_cancel"
	KeyImageUnsupported  = "image_unsupported"
	KeyImageUnreadable   = "image_unreadable"
	KeyMessageTooLong    = "message_too_long"

	KeyExpenseAdded         = "expense_added"
	KeyIncomeAdded          = "income_added"
	KeyAmountRequired       = "amount_required"
	KeyPaymentMethodMissing = "payment_method_missing"
	KeyDuplicateSuspected   = "duplicate_suspected"
	KeyDuplicateRejected    = "duplicate_rejected"
	KeyBatchItemOK          = "batch_item_ok"
	KeyBatchItemFailed      = "batch_item_failed"
	KeyBatchSummary         = "batch_summary"

	KeyExpensesHeader = "expenses_header"
	KeyExpensesLine   = "expenses_line"
	KeyExpensesEmpty  = "expenses_empty"
	KeyReportHeader   = "report_header"
	KeyReportLine     = "report_line"
	KeyReportBudget   = "report_budget"
	KeyReportTotals   = "report_totals"
	KeyReportEmpty    = "report_empty"

	KeyTransactionNotFound  = "transaction_not_found"
	KeyTransactionAmbiguous = "transaction_ambiguous"
	KeyTransactionUpdated   = "transaction_updated"
	KeyTransactionDeleted   = "transaction_deleted"
	KeyNothingToChange      = "nothing_to_change"
	KeyBudgetSet            = "budget_set"
	KeyBudgetInvalid        = "budget_invalid"

	KeyModePrompt         = "mode_prompt"
	KeyModeInvalidChoice  = "mode_invalid_choice"
	KeyModeSetCredit      = "mode_set_credit"
	KeyModeSetSimple      = "mode_set_simple"
	KeyModeAlreadySet     = "mode_already_set"
	KeyModeNothingPending = "mode_nothing_pending"
	KeyCardRequired       = "card_required"
	KeyCardNotFound       = "card_not_found"
	KeyNotCreditCard      = "not_credit_card"

	KeyInstallmentInvalidAmount = "installment_invalid_amount"
	KeyInstallmentInvalidCount  = "installment_invalid_count"
	KeyInstallmentNoCards       = "installment_no_cards"
	KeyInstallmentChooseCard    = "installment_choose_card"
	KeyInstallmentNoMatch       = "installment_no_match"
	KeyInstallmentCreated       = "installment_created"
	KeyInstallmentsHeader       = "installments_header"
	KeyInstallmentsLine         = "installments_line"
	KeyInstallmentsEmpty        = "installments_empty"
	KeyOptionLine               = "option_line"

	KeyDeletionNone          = "deletion_none"
	KeyDeletionChoose        = "deletion_choose"
	KeyDeletionInvalidChoice = "deletion_invalid_choice"
	KeyDeletionConfirm       = "deletion_confirm"
	KeyDeletionDone          = "deletion_done"

	KeyCorrectionNothing = "correction_nothing"
)

// ActionKey is the key of the human label of an action, used in
// permission denials.
func ActionKey(action string) string {
	return "action_" + action
}
