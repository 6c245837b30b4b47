package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/rpcmsg"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "flottactl",
	Short:   "flottactl submits and manages jobs on a flottactld controller",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("controller", "127.0.0.1:6817", "Controller RPC address")
	rootCmd.AddCommand(submitCmd, cancelCmd, suspendCmd, resumeCmd, requeueCmd, jobInfoCmd)
}

// roundTrip dials addr, writes one framed request, reads one framed
// reply and returns it, matching pkg/controller/server.go's
// one-RPC-per-connection contract (§5).
func roundTrip(addr string, req rpcmsg.Message) (rpcmsg.Message, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := rpcmsg.WriteMessage(conn, req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	_, reply, err := rpcmsg.ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	return reply, nil
}

func rcString(msg rpcmsg.Message) string {
	if rc, ok := msg.(*rpcmsg.ResponseSlurmRCMsg); ok {
		if rc.Errno == 0 {
			return "OK"
		}
		return rc.Errno.Error()
	}
	return "ok"
}

var submitCmd = &cobra.Command{
	Use:   "submit [flags] -- command [args...]",
	Short: "Submit a batch job",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("controller")
		partition, _ := cmd.Flags().GetString("partition")
		name, _ := cmd.Flags().GetString("name")
		nodes, _ := cmd.Flags().GetUint32("nodes")
		timeLimit, _ := cmd.Flags().GetUint32("time")

		req := &rpcmsg.SubmitBatchJobMsg{Desc: rpcmsg.SubmitDescriptor{
			Name:      name,
			Partition: partition,
			MinNodes:  nodes,
			MaxNodes:  nodes,
			NumProcs:  nodes,
			TimeLimit: timeLimit,
			BatchFlag: 1,
			Argv:      args,
			WorkDir:   mustGetwd(),
		}}

		reply, err := roundTrip(addr, req)
		if err != nil {
			return err
		}
		switch r := reply.(type) {
		case *rpcmsg.ResponseSubmitBatchJobMsg:
			if r.ErrorCode != 0 {
				return fmt.Errorf("submit rejected: %s", errcode.Code(r.ErrorCode).Error())
			}
			fmt.Printf("Submitted batch job %d\n", r.JobID)
		case *rpcmsg.ResponseSlurmRCMsg:
			return fmt.Errorf("submit rejected: %s", r.Errno.Error())
		default:
			fmt.Println(rcString(reply))
		}
		return nil
	},
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job_id>[.<step_id>]",
	Short: "Cancel a job or job step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("controller")
		signal, _ := cmd.Flags().GetUint32("signal")
		key, err := parseJobStepKey(args[0])
		if err != nil {
			return err
		}
		reply, err := roundTrip(addr, &rpcmsg.CancelJobStepMsg{Key: key, Signal: signal})
		if err != nil {
			return err
		}
		fmt.Println(rcString(reply))
		return nil
	},
}

var suspendCmd = &cobra.Command{
	Use:   "suspend <job_id>",
	Short: "Suspend a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSuspend(cmd, args, false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <job_id>",
	Short: "Resume a suspended job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSuspend(cmd, args, true)
	},
}

func sendSuspend(cmd *cobra.Command, args []string, resume bool) error {
	addr, _ := cmd.Flags().GetString("controller")
	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}
	reply, err := roundTrip(addr, &rpcmsg.SuspendMsg{JobID: jobID, Resume: resume})
	if err != nil {
		return err
	}
	fmt.Println(rcString(reply))
	return nil
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <job_id>",
	Short: "Requeue a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("controller")
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		reply, err := roundTrip(addr, &rpcmsg.RequeueMsg{JobID: jobID})
		if err != nil {
			return err
		}
		fmt.Println(rcString(reply))
		return nil
	},
}

var jobInfoCmd = &cobra.Command{
	Use:   "job-info [job_id]",
	Short: "Show job status; omit job_id to list every job",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("controller")
		var jobID uint32
		if len(args) == 1 {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			jobID = id
		}
		reply, err := roundTrip(addr, &rpcmsg.JobInfoRequestMsg{JobID: jobID})
		if err != nil {
			return err
		}
		info, ok := reply.(*rpcmsg.ResponseJobInfoMsg)
		if !ok {
			if rc, ok := reply.(*rpcmsg.ResponseSlurmRCMsg); ok {
				return fmt.Errorf("job-info failed: %s", rc.Errno.Error())
			}
			return fmt.Errorf("unexpected reply type")
		}
		if len(info.Jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}
		fmt.Printf("%-8s %-20s %-12s %-20s %s\n", "JOBID", "NAME", "PARTITION", "NODELIST", "STATE")
		for _, j := range info.Jobs {
			fmt.Printf("%-8d %-20s %-12s %-20s %d\n", j.JobID, j.Name, j.Partition, j.NodeList, j.JobState)
		}
		return nil
	},
}

func parseJobID(s string) (uint32, error) {
	var id uint32
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", s, err)
	}
	return id, nil
}

func parseJobStepKey(s string) (rpcmsg.JobStepKey, error) {
	parts := strings.SplitN(s, ".", 2)
	jobID, err := parseJobID(parts[0])
	if err != nil {
		return rpcmsg.JobStepKey{}, err
	}
	if len(parts) == 1 {
		return rpcmsg.JobStepKey{JobID: jobID}, nil
	}
	var stepID uint32
	if _, err := fmt.Sscanf(parts[1], "%d", &stepID); err != nil {
		return rpcmsg.JobStepKey{}, fmt.Errorf("invalid step id %q: %w", parts[1], err)
	}
	return rpcmsg.JobStepKey{JobID: jobID, StepID: stepID}, nil
}

func init() {
	submitCmd.Flags().String("partition", "", "Partition to submit to")
	submitCmd.Flags().String("name", "", "Job name")
	submitCmd.Flags().Uint32("nodes", 1, "Number of nodes/tasks to request")
	submitCmd.Flags().Uint32("time", 0, "Time limit in minutes (0 = no limit)")

	cancelCmd.Flags().Uint32("signal", 15, "Signal to send (default SIGTERM)")
}
