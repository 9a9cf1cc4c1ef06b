package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/internal/glog"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rchttp"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rctransition"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		p        rctransition.CreateParams
		founder  string
		circleID string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Print the encoded genesis state of a new circle",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			p.Founder, err = gcrypto.ParseSecp256k1PubKeyHex(founder)
			if err != nil {
				return &rcstate.ParamError{Field: "founder", Reason: err.Error()}
			}
			if circleID != "" {
				b, err := hex.DecodeString(circleID)
				if err != nil || len(b) != len(p.CircleID) {
					return &rcstate.ParamError{Field: "circle-id", Reason: "must be 32 hex-encoded bytes"}
				}
				copy(p.CircleID[:], b)
			}
			if p.CreatedAt == 0 {
				p.CreatedAt = uint64(time.Now().Unix())
			}

			s, err := rctransition.CreateCircle(p)
			if err != nil {
				return err
			}
			return printState(cmd, s)
		},
	}

	f := cmd.Flags()
	f.Uint32Var(&p.MemberCapacity, "capacity", 0, "number of members and rounds")
	f.Uint64Var(&p.ContributionPerRound, "contribution", 0, "amount each member pays per round")
	f.Uint64Var(&p.RoundDuration, "duration", 7*24*60*60, "expected round length in seconds")
	f.Uint64Var(&p.CreatedAt, "created-at", 0, "creation time in Unix seconds (default now)")
	f.StringVar(&founder, "founder", "", "founder's compressed secp256k1 public key, hex")
	f.StringVar(&circleID, "circle-id", "", "32-byte circle ID, hex (default random)")
	_ = cmd.MarkFlagRequired("capacity")
	_ = cmd.MarkFlagRequired("contribution")
	_ = cmd.MarkFlagRequired("founder")

	return cmd
}

func newAddMemberCmd() *cobra.Command {
	var (
		pubKey      string
		payoutRound uint32
		joinedAt    uint64
	)
	cmd := &cobra.Command{
		Use:   "add-member STATE_HEX",
		Short: "Enroll a member and print the successor state",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := stateArg(cmd, args[0])
			if err != nil {
				return err
			}
			pub, err := gcrypto.ParseSecp256k1PubKeyHex(pubKey)
			if err != nil {
				return &rcstate.ParamError{Field: "pubkey", Reason: err.Error()}
			}
			if joinedAt == 0 {
				joinedAt = uint64(time.Now().Unix())
			}

			next, err := rctransition.AddMember(s, pub, payoutRound, joinedAt)
			if err != nil {
				return err
			}
			return printState(cmd, next)
		},
	}

	f := cmd.Flags()
	f.StringVar(&pubKey, "pubkey", "", "member's compressed secp256k1 public key, hex")
	f.Uint32Var(&payoutRound, "payout-round", 0, "round in which the member is paid")
	f.Uint64Var(&joinedAt, "joined-at", 0, "join time in Unix seconds (default now)")
	_ = cmd.MarkFlagRequired("pubkey")
	_ = cmd.MarkFlagRequired("payout-round")

	return cmd
}

func newContributeCmd() *cobra.Command {
	var (
		pubKey    string
		amount    uint64
		timestamp uint64
		txRef     string
	)
	cmd := &cobra.Command{
		Use:   "contribute STATE_HEX",
		Short: "Record a contribution and print the successor state",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd, "")
			if err != nil {
				return err
			}
			s, err := stateArg(cmd, args[0])
			if err != nil {
				return err
			}
			pub, err := gcrypto.ParseSecp256k1PubKeyHex(pubKey)
			if err != nil {
				return &rcstate.ParamError{Field: "pubkey", Reason: err.Error()}
			}
			var ref [rcstate.HashSize]byte
			b, err := hex.DecodeString(txRef)
			if err != nil || len(b) != len(ref) {
				return &rcstate.ParamError{Field: "tx-ref", Reason: "must be 32 hex-encoded bytes"}
			}
			copy(ref[:], b)
			if timestamp == 0 {
				timestamp = uint64(time.Now().Unix())
			}

			next, err := rctransition.RecordContribution(s, pub, amount, timestamp, ref)
			if err != nil {
				return err
			}
			if p, ok := rctransition.PayoutOf(s, next); ok {
				log.Info(
					"Round paid out",
					"round", p.Round, "recipient", glog.Hex(p.Recipient[:]), "amount", p.Amount,
				)
			}
			return printState(cmd, next)
		},
	}

	f := cmd.Flags()
	f.StringVar(&pubKey, "pubkey", "", "contributing member's compressed secp256k1 public key, hex")
	f.Uint64Var(&amount, "amount", 0, "amount paid")
	f.Uint64Var(&timestamp, "timestamp", 0, "payment time in Unix seconds (default now)")
	f.StringVar(&txRef, "tx-ref", "", "32-byte reference of the paying transaction, hex")
	_ = cmd.MarkFlagRequired("pubkey")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("tx-ref")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect STATE_HEX",
		Short: "Decode and validate a state, printing it as JSON",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readArg(cmd, args[0])
			if err != nil {
				return err
			}
			s, err := rccodec.UnmarshalStateHex(in)
			if err != nil {
				return err
			}

			out := struct {
				rchttp.CircleView
				Hash    string `json:"hash"`
				Genesis bool   `json:"genesis"`
				Valid   bool   `json:"valid"`
				Problem string `json:"problem,omitempty"`
			}{
				CircleView: rchttp.NewCircleView(s, rcledger.OutputRef{}, uint64(time.Now().Unix())),
				Genesis:    s.IsGenesis(),
				Valid:      true,
			}
			out.Ref = ""
			h := rcchain.HashState(s)
			out.Hash = hex.EncodeToString(h[:])
			if err := rcstate.Validate(s); err != nil {
				out.Valid = false
				out.Problem = err.Error()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash STATE_HEX",
		Short: "Print the chain-linkage hash of an encoded state",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readArg(cmd, args[0])
			if err != nil {
				return err
			}
			b, err := rccodec.DecodeHex(in)
			if err != nil {
				return err
			}
			if _, err := rccodec.UnmarshalState(b); err != nil {
				return err
			}
			h := rcchain.HashBytes(b)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(h[:]))
			return err
		},
	}
}

func newVerifyHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-history FILE",
		Short: "Verify a circle history, one hex state per line, oldest first",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			var sc *bufio.Scanner
			if args[0] == "-" {
				sc = bufio.NewScanner(cmd.InOrStdin())
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				sc = bufio.NewScanner(f)
			}
			sc.Buffer(nil, 64<<20)

			var blobs [][]byte
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				b, err := rccodec.DecodeHex(line)
				if err != nil {
					return fmt.Errorf("line %d: %w", len(blobs)+1, err)
				}
				blobs = append(blobs, b)
			}
			if err := sc.Err(); err != nil {
				return err
			}

			tip, err := rcchain.VerifyHistory(blobs)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(
				cmd.OutOrStdout(), "ok: %d states, round %d of %d, phase %s\n",
				len(blobs), tip.CurrentRound, tip.MemberCapacity, tip.Phase(),
			)
			return err
		},
	}
}

func stateArg(cmd *cobra.Command, arg string) (rcstate.CircleState, error) {
	in, err := readArg(cmd, arg)
	if err != nil {
		return rcstate.CircleState{}, err
	}
	s, err := rccodec.UnmarshalStateHex(in)
	if err != nil {
		return rcstate.CircleState{}, err
	}
	if err := rcstate.Validate(s); err != nil {
		return rcstate.CircleState{}, fmt.Errorf("input state: %w", err)
	}
	return s, nil
}

func printState(cmd *cobra.Command, s rcstate.CircleState) error {
	if err := rcstate.Validate(s); err != nil {
		return errors.Join(errors.New("refusing to print invalid state"), err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), rccodec.EncodeHex(rccodec.MarshalState(s)))
	return err
}
