package certificate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/record"
	"github.com/chaitanya1-coder/docufy/pkg/txbuilder"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

// Error classes. Match them with errors.Is against an *Error.
var (
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrIndexer           = errors.New("indexer error")
	ErrNetwork           = errors.New("network error")
	ErrWalletSigning     = errors.New("wallet signing error")
	ErrAddressFormat     = errors.New("address format error")
)

// Steps reported on failure.
const (
	StepValidate     = "validate"
	StepConfigure    = "configure"
	StepProbe        = "probe"
	StepHash         = "hash"
	StepAddress      = "resolve_address"
	StepRecord       = "record"
	StepTransaction  = "transaction"
	StepListHistory  = "list_transactions"
	StepScanMetadata = "scan_metadata"
)

// User-facing messages.
const (
	msgNotPDF         = "Only PDF files are supported"
	msgTooLarge       = "File size must be less than 10MB"
	msgEmptyFile      = "The selected file is empty"
	msgNoFileName     = "The selected file has no name"
	msgNameTooLong    = "File name is too long to be stored on chain. Please rename the file and try again."
	msgAPIKeyMissing  = "Blockfrost API key not configured. Please set up your API key in the configuration panel."
	msgAPIKeyInvalid  = "Invalid Blockfrost API key. Please check your configuration."
	msgBadNetwork     = "Unsupported network selected. Choose mainnet, preview or preprod."
	msgNoWallet       = "Wallet API not provided. Please connect your wallet."
	msgNoAddress      = "Could not get wallet address. Please ensure your wallet is properly connected."
	msgNoUTXOs        = "No UTXOs found in wallet. Please ensure your wallet has some test ADA."
	msgLowFunds       = "Insufficient funds in wallet. Please ensure you have at least 3 ADA in your wallet."
	msgNetwork        = "Network error. Please check your internet connection and try again."
	msgIndexer        = "Blockfrost API configuration error. Please check your API key and network settings."
	msgAddressFormat  = "Address format not supported by Blockfrost API. This may be a hex-encoded address that needs conversion to bech32 format."
	msgSigning        = "The wallet did not sign or submit the transaction. Please approve the request in your wallet and try again."
	msgTxTooLarge     = "The certificate transaction exceeds the network's maximum transaction size. Please use a shorter file name."
	msgBadUTXO        = "The wallet returned outputs that could not be read. Please reconnect your wallet and try again."
	msgTxBuild        = "Could not build the certificate transaction. Please try again."
	msgNoTransactions = "No transactions found for this address. The certificate may have been issued from a different wallet or the address format may be incompatible."
	msgNotFound       = "Certificate hash not found on blockchain. The certificate may be invalid or issued on a different network."
	msgVerified       = "Certificate verified on blockchain."
	msgVersionUnknown = "Certificate was written by an unknown version of the issuing application."
)

// Error is what Issue and Verify return. Message is safe to show a user;
// Err keeps the cause for logs.
type Error struct {
	Class   error
	Message string
	Step    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Is(target error) bool { return target == e.Class }

func (e *Error) Unwrap() error { return e.Err }

func newError(class error, step, msg string, cause error) *Error {
	return &Error{Class: class, Message: msg, Step: step, Err: cause}
}

// classify maps an error from a lower layer onto the service taxonomy.
func classify(step string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var (
		te  *indexer.TransportError
		api *indexer.APIError
	)
	switch {
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(ErrNetwork, step, msgNetwork, err)
	case errors.Is(err, txbuilder.ErrSigning), errors.Is(err, txbuilder.ErrSubmission), errors.Is(err, wallet.ErrRejected):
		return newError(ErrWalletSigning, step, msgSigning, err)
	case errors.Is(err, txbuilder.ErrNoUTXOs):
		return newError(ErrInsufficientFunds, step, msgNoUTXOs, err)
	case errors.Is(err, txbuilder.ErrInsufficientFunds):
		return newError(ErrInsufficientFunds, step, msgLowFunds, err)
	case errors.Is(err, txbuilder.ErrTooLarge):
		return newError(ErrValidation, step, msgTxTooLarge, err)
	case errors.Is(err, wallet.ErrMalformedUTXO):
		return newError(ErrWalletUnavailable, step, msgBadUTXO, err)
	case errors.Is(err, wallet.ErrUnavailable):
		return newError(ErrWalletUnavailable, step, msgNoWallet, err)
	case errors.Is(err, wallet.ErrNoAddress):
		return newError(ErrWalletUnavailable, step, msgNoAddress, err)
	case errors.Is(err, indexer.ErrAddressFormat), errors.Is(err, address.ErrNotConvertible), errors.Is(err, address.ErrInvalid):
		return newError(ErrAddressFormat, step, msgAddressFormat, err)
	case errors.Is(err, config.ErrAPIKeyMissing), errors.Is(err, config.ErrAPIKeyPlaceholder):
		return newError(ErrConfiguration, step, msgAPIKeyMissing, err)
	case errors.Is(err, config.ErrUnknownNetwork):
		return newError(ErrConfiguration, step, msgBadNetwork, err)
	case errors.Is(err, record.ErrTooLong):
		return newError(ErrValidation, step, msgNameTooLong, err)
	case errors.As(err, &api):
		if api.Unauthorized() {
			return newError(ErrConfiguration, step, msgAPIKeyInvalid, err)
		}
		return newError(ErrIndexer, step, fmt.Sprintf("%s (HTTP %d)", msgIndexer, api.Status), err)
	}

	switch step {
	case StepTransaction:
		// Signing and submission failures are tagged by the builder.
		return newError(ErrIndexer, step, msgTxBuild, err)
	case StepAddress:
		return newError(ErrWalletUnavailable, step, msgNoAddress, err)
	case StepValidate, StepRecord:
		return newError(ErrValidation, step, err.Error(), err)
	default:
		return newError(ErrIndexer, step, msgIndexer, err)
	}
}
