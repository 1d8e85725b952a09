package history

import (
	"github.com/pkg/errors"
	"github.com/speps/go-hashids/v2"
)

const (
	idStrLen = 6
	salt     = "vtime2026"
)

var (
	h *hashids.HashID
)

func init() {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = idStrLen

	var err error
	if h, err = hashids.NewWithData(hd); err != nil {
		panic(errors.Wrapf(err, "HashID init failed."))
	}
}

// EncodeID turns a session sequence number into a short display ID.
func EncodeID(seq int64) (string, error) {
	if seq < 0 {
		return "", errors.Errorf("session sequence must not be negative. seq=%d", seq)
	}

	str, err := h.EncodeInt64([]int64{seq})
	if err != nil {
		return "", errors.Wrapf(err, "HashID encode failed. seq=%d", seq)
	}
	return str, nil
}

// DecodeID reverses EncodeID.
func DecodeID(str string) (int64, error) {
	ids, err := h.DecodeInt64WithError(str)
	if err != nil {
		return 0, errors.Wrapf(err, "HashID decode failed. str=%s", str)
	}
	if len(ids) != 1 {
		return 0, errors.Errorf("HashID decode failed. str=%s", str)
	}
	return ids[0], nil
}
