package dto

// IssueRequestBody is the request body for a payee creating a payment request.
// Text that gets signed into the payload is kept verbatim.
type IssueRequestBody struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	IntentLabel string `json:"intent_label" binding:"max=256" sanitize:"-"`
	IssuerName  string `json:"issuer_name" binding:"omitempty,display_name" sanitize:"-"`
	TTLSeconds  int    `json:"ttl_seconds" binding:"gte=0"`
	QR          bool   `json:"qr"`
}

// AcceptRequestBody is the request body for a payer approving an encoded request.
type AcceptRequestBody struct {
	Encoded   string `json:"encoded" binding:"required,handshake_payload"`
	PayerName string `json:"payer_name" binding:"omitempty,display_name" sanitize:"-"`
	Offline   bool   `json:"offline"`
	QR        bool   `json:"qr"`
}

// ConfirmReceiptBody is the request body for a payee checking an encoded receipt.
type ConfirmReceiptBody struct {
	Encoded string `json:"encoded" binding:"required,handshake_payload"`
	Credit  bool   `json:"credit"`
}

// LoadOfflineBody is the request body for earmarking funds into the offline pool.
type LoadOfflineBody struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// DepositBody books money received through an online channel.
type DepositBody struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"required,max=128"`
	Source    string `json:"source" binding:"max=256"`
}

// IdentityResponse is the public view of the local identity.
type IdentityResponse struct {
	IdentityID string `json:"identity_id"`
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	CreatedAt  string `json:"created_at"`
}

// IssueRequestResponse carries the signed request and its transport form.
type IssueRequestResponse struct {
	Nonce     string `json:"nonce"`
	Amount    int64  `json:"amount"`
	ExpiresAt string `json:"expires_at"`
	Encoded   string `json:"encoded"`
	QRPNG     string `json:"qr_png,omitempty"` // base64
}

// AcceptRequestResponse carries the counter-signed receipt returned to the payee.
type AcceptRequestResponse struct {
	Encoded     string              `json:"encoded"`
	QRPNG       string              `json:"qr_png,omitempty"`
	Transaction TransactionResponse `json:"transaction"`
}

// ConfirmReceiptResponse reports a verified receipt and the credit, if any.
type ConfirmReceiptResponse struct {
	Nonce        string               `json:"nonce"`
	Amount       int64                `json:"amount"`
	PayerAddress string               `json:"payer_address"`
	PayerName    string               `json:"payer_name,omitempty"`
	ApprovedAt   string               `json:"approved_at"`
	Transaction  *TransactionResponse `json:"transaction,omitempty"`
}

// WalletResponse is the response for a balance query.
type WalletResponse struct {
	MainBalance      int64                 `json:"main_balance"`
	AvailableBalance int64                 `json:"available_balance"`
	Offline          OfflineWalletResponse `json:"offline"`
	UpdatedAt        string                `json:"updated_at"`
}

// OfflineWalletResponse is the offline pool part of WalletResponse.
type OfflineWalletResponse struct {
	Loaded            bool    `json:"loaded"`
	Balance           int64   `json:"balance"`
	InitialLoadAmount int64   `json:"initial_load_amount"`
	LoadedAt          *string `json:"loaded_at,omitempty"`
	LastReset         *string `json:"last_reset,omitempty"`
}

// UnloadResponse reports the amount released from the offline pool.
type UnloadResponse struct {
	Released int64 `json:"released"`
}

// TransactionResponse is the response body for a ledger entry.
type TransactionResponse struct {
	ID                  string  `json:"id"`
	JournalID           string  `json:"journal_id"`
	CounterpartyAddress string  `json:"counterparty_address"`
	Amount              int64   `json:"amount"`
	Direction           string  `json:"direction"`
	Status              string  `json:"status"`
	Mode                string  `json:"mode"`
	Nonce               string  `json:"nonce"`
	IntentLabel         string  `json:"intent_label,omitempty"`
	Timestamp           string  `json:"timestamp"`
	SettledAt           *string `json:"settled_at,omitempty"`
}

// TransactionListResponse wraps a paginated ledger listing.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// SummaryResponse is the response for ledger statistics.
type SummaryResponse struct {
	Period   string `json:"period"`
	Total    int64  `json:"total"`
	Queued   int64  `json:"queued"`
	Settled  int64  `json:"settled"`
	Failed   int64  `json:"failed"`
	Debited  int64  `json:"debited"`
	Credited int64  `json:"credited"`
}

// JournalEntryResponse is the view of an incomplete journal record.
type JournalEntryResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Direction string `json:"direction"`
	Amount    int64  `json:"amount"`
	Nonce     string `json:"nonce"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
