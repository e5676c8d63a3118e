package signing

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"testing"

	"github.com/fieldfiller/stegano"
	"github.com/fieldfiller/stegano/internal/revocation"
	"github.com/fieldfiller/stegano/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	masterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	otherKey  = "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f"
)

type fixture struct {
	svc     *Service
	store   *store.Store
	revoked *revocation.Set
	user    store.User
	cover   []byte
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// coverPNG renders a w x h PNG; textured covers give F5 nonzero
// coefficients, flat gray keeps DCT blocks clear of clipping
func coverPNG(t *testing.T, w, h int, textured bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(128)
			if textured {
				v = uint8(math.Round(128 + 40*math.Sin(0.7*float64(x)) + 30*math.Cos(1.3*float64(y))))
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFixture(t *testing.T, alg stegano.Algorithm, cipher IdentityCipher) *fixture {
	t.Helper()

	st, err := store.Open(store.Config{
		InMemory: true,
		Password: store.Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1},
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s, err := stegano.New(&stegano.Config{Algorithm: alg, Logger: quietLogger()})
	require.NoError(t, err)
	pool, err := stegano.NewPool(s, stegano.ParallelConfig{MaxWorkers: 2, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	if cipher == nil {
		cipher, err = stegano.NewKeyRingFromHex(stegano.CipherAuto, masterKey)
		require.NoError(t, err)
	}

	revoked := revocation.NewSet(0, nil)
	svc, err := New(Config{
		Cipher:      cipher,
		Engine:      pool,
		Records:     st,
		Revocations: revoked,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	user, err := st.CreateUser(store.UserInput{FirstName: "Ada", LastName: "Lovelace", Login: "ada", Password: "pw"})
	require.NoError(t, err)

	return &fixture{
		svc:     svc,
		store:   st,
		revoked: revoked,
		user:    user,
		cover:   coverPNG(t, 256, 256, alg != stegano.AlgorithmDCT),
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "cipher cannot be nil")
}

func TestSignVerify(t *testing.T) {
	for _, alg := range []stegano.Algorithm{stegano.AlgorithmF5, stegano.AlgorithmDCT, stegano.AlgorithmQIM} {
		t.Run(alg.String(), func(t *testing.T) {
			f := newFixture(t, alg, nil)
			sess := Session{Token: "tok", UserID: f.user.ID}

			signed, err := f.svc.Sign(context.Background(), sess, f.cover, stegano.FormatPNG)
			require.NoError(t, err)
			assert.Equal(t, "image/png", signed.MIMEType)
			assert.Equal(t, "stego_image.png", signed.Filename)
			assert.Equal(t, f.user.ID, signed.Signature.UserID)

			got, err := f.svc.Verify(context.Background(), signed.Data)
			require.NoError(t, err)
			assert.Equal(t, f.user, got)

			sigs, err := f.store.ListSignaturesByUser(f.user.ID)
			require.NoError(t, err)
			require.Len(t, sigs, 1)
			assert.Equal(t, signed.Signature.Payload, sigs[0].Payload)
		})
	}
}

func TestSign_JPEGFilename(t *testing.T) {
	f := newFixture(t, stegano.AlgorithmDCT, nil)

	signed, err := f.svc.Sign(context.Background(), Session{Token: "tok", UserID: f.user.ID}, f.cover, stegano.FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", signed.MIMEType)
	assert.Equal(t, "stego_image.jpg", signed.Filename)
}

func TestSign_Sessions(t *testing.T) {
	f := newFixture(t, stegano.AlgorithmQIM, nil)
	ctx := context.Background()

	_, err := f.svc.Sign(ctx, Session{UserID: f.user.ID}, f.cover, stegano.FormatPNG)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = f.svc.Sign(ctx, Session{Token: "tok", UserID: 9999}, f.cover, stegano.FormatPNG)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	sess := Session{Token: "tok", UserID: f.user.ID}
	require.NoError(t, f.svc.Logout(sess))
	require.NoError(t, f.svc.Logout(sess))
	assert.True(t, f.revoked.IsRevoked("tok"))

	_, err = f.svc.Sign(ctx, sess, f.cover, stegano.FormatPNG)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.ErrorIs(t, f.svc.Logout(Session{}), ErrInvalidSession)

	// nothing was recorded for the rejected calls
	sigs, err := f.store.ListSignatures(0, 0)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestSign_CapacityNotRecorded(t *testing.T) {
	f := newFixture(t, stegano.AlgorithmQIM, nil)

	// 8x8 leaves 32 bits after the length header
	_, err := f.svc.Sign(context.Background(), Session{Token: "tok", UserID: f.user.ID}, coverPNG(t, 8, 8, true), stegano.FormatPNG)
	assert.True(t, stegano.IsCapacityError(err))

	sigs, err := f.store.ListSignatures(0, 0)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestVerify_Errors(t *testing.T) {
	f := newFixture(t, stegano.AlgorithmQIM, nil)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, []byte("not an image"))
	assert.True(t, stegano.IsDecodeError(err))

	// an unsigned cover carries no payload the cipher accepts
	_, err = f.svc.Verify(ctx, f.cover)
	assert.Error(t, err)

	// signed for a user that was deleted afterwards
	signed, err := f.svc.Sign(ctx, Session{Token: "tok", UserID: f.user.ID}, f.cover, stegano.FormatPNG)
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteUser(f.user.ID))
	_, err = f.svc.Verify(ctx, signed.Data)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestVerify_KeyRotation(t *testing.T) {
	old, err := stegano.NewKeyRingFromHex(stegano.CipherAuto, masterKey)
	require.NoError(t, err)
	f := newFixture(t, stegano.AlgorithmQIM, old)

	signed, err := f.svc.Sign(context.Background(), Session{Token: "tok", UserID: f.user.ID}, f.cover, stegano.FormatPNG)
	require.NoError(t, err)

	rotated, err := stegano.NewKeyRingFromHex(stegano.CipherAuto, otherKey, masterKey)
	require.NoError(t, err)
	verifier, err := New(Config{
		Cipher:      rotated,
		Engine:      f.svc.engine,
		Records:     f.store,
		Revocations: f.revoked,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	got, err := verifier.Verify(context.Background(), signed.Data)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, got.ID)

	retired, err := stegano.NewKeyRingFromHex(stegano.CipherAuto, otherKey)
	require.NoError(t, err)
	strict, err := New(Config{Cipher: retired, Engine: f.svc.engine, Records: f.store, Revocations: f.revoked, Logger: quietLogger()})
	require.NoError(t, err)
	_, err = strict.Verify(context.Background(), signed.Data)
	assert.True(t, stegano.IsAuthenticationError(err))
}
