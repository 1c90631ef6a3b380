package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/melodyhub/backend/internal/config"
	"github.com/skip2/go-qrcode"
)

const paymentQRCacheTTL = time.Hour

// PaymentInfoService exposes the platform collection accounts a user
// pays into before submitting a recharge request, with a generated KPay
// QR image.
type PaymentInfoService struct {
	redis *redis.Client
	cfg   *config.PaymentConfig
}

func NewPaymentInfoService(redisClient *redis.Client, cfg *config.PaymentConfig) *PaymentInfoService {
	return &PaymentInfoService{redis: redisClient, cfg: cfg}
}

// PaymentInfo is the topup instruction payload.
type PaymentInfo struct {
	KPay struct {
		Account string `json:"account"`
		Holder  string `json:"holder"`
		QRImage string `json:"qr_image,omitempty"` // base64 PNG
	} `json:"kpay"`
	KBZBanking struct {
		Account     string `json:"account"`
		AccountName string `json:"account_name"`
	} `json:"kbz_banking"`
	Instructions map[string]string `json:"instructions"`
}

func (s *PaymentInfoService) Get(ctx context.Context) (*PaymentInfo, error) {
	info := &PaymentInfo{Instructions: s.cfg.Instructions}
	info.KPay.Account = s.cfg.KPayAccount
	info.KPay.Holder = s.cfg.KPayHolder
	info.KBZBanking.Account = s.cfg.KBZAccount
	info.KBZBanking.AccountName = s.cfg.KBZAccountName

	if s.cfg.KPayAccount != "" {
		qrImage, err := s.kpayQR(ctx)
		if err != nil {
			// Payment info is still useful without the image.
			log.Printf("[PAYMENT] QR generation failed: %v", err)
		} else {
			info.KPay.QRImage = qrImage
		}
	}
	return info, nil
}

func (s *PaymentInfoService) kpayQR(ctx context.Context) (string, error) {
	const cacheKey = "wallet:payment:kpay_qr"

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	qr, err := qrcode.New(s.cfg.KPayAccount, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	if s.redis != nil {
		s.redis.Set(ctx, cacheKey, encoded, paymentQRCacheTTL)
	}
	return encoded, nil
}
