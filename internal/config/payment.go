package config

// PaymentConfig holds the platform collection accounts shown to users
// topping up over external rails.
type PaymentConfig struct {
	KPayAccount    string
	KPayHolder     string
	KBZAccount     string
	KBZAccountName string
	Instructions   map[string]string
}

func LoadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		KPayAccount:    getEnv("PAYMENT_KPAY_ACCOUNT", ""),
		KPayHolder:     getEnv("PAYMENT_KPAY_HOLDER", ""),
		KBZAccount:     getEnv("PAYMENT_KBZ_ACCOUNT", ""),
		KBZAccountName: getEnv("PAYMENT_KBZ_ACCOUNT_NAME", ""),
		Instructions: map[string]string{
			"kpay":        "Scan the KPay QR code, pay, then upload the payment screenshot",
			"kbz_banking": "Transfer to the KBZ Banking account, then upload the payment screenshot",
		},
	}
}
