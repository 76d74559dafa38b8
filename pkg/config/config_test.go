package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, PaymentProviderMidtrans, cfg.Payment.Provider)
	assert.Equal(t, "thb", cfg.Payment.Currency)
	assert.Equal(t, 15*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 2, cfg.Booking.AbsenceBufferDefault)
	assert.Equal(t, "Asia/Bangkok", cfg.Booking.ScheduleTimezone)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Len(t, cfg.Storage.AllowedMIMEs, 4)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PAYMENT_PROVIDER", "MercadoPago")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("ABSENCE_BUFFER_DEFAULT", "4")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, PaymentProviderMercadoPago, cfg.Payment.Provider)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 4, cfg.Booking.AbsenceBufferDefault)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadKeepsCheckoutInsideReaperWindow(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, cfg.Payment.SessionTTL)
	assert.Less(t, cfg.Payment.SessionTTL, cfg.Booking.PendingTTL)

	t.Setenv("PAYMENT_SESSION_TTL", "48h")
	t.Setenv("BOOKING_PENDING_TTL", "12h")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 11*time.Hour+30*time.Minute, cfg.Payment.SessionTTL)
}

func TestCheckoutWindow(t *testing.T) {
	assert.Equal(t, 2*time.Hour, checkoutWindow(2*time.Hour, 24*time.Hour))
	assert.Equal(t, 23*time.Hour, checkoutWindow(24*time.Hour, 24*time.Hour))
	assert.Equal(t, 23*time.Hour, checkoutWindow(0, 24*time.Hour))
}

func TestLoadProductionRequiresWebhookSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", EnvProduction)
	t.Setenv("PAYMENT_PROVIDER", PaymentProviderMercadoPago)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MERCADOPAGO_WEBHOOK_SECRET")

	t.Setenv("MERCADOPAGO_WEBHOOK_SECRET", "whsec")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("PAYMENT_PROVIDER", PaymentProviderMidtrans)
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIDTRANS_SERVER_KEY")

	t.Setenv("MIDTRANS_SERVER_KEY", "server-key")
	_, err = Load()
	assert.NoError(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir on older Go).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}
