package call

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gonefs/gonefs/cmd/util"
	"github.com/gonefs/gonefs/lib/clockproc"
	"github.com/spf13/cobra"
)

var CallCmd = &cobra.Command{
	Use:   "call",
	Short: "Invoke a procedure of the clock RPC program",
}

var nullCmd = &cobra.Command{
	Use:   "null",
	Short: "Probe the server with the do-nothing procedure",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *clockproc.Client) error {
			if err := c.Null(ctx); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		})
	},
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the server's current time",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *clockproc.Client) error {
			now, err := c.Now(ctx)
			if err != nil {
				return err
			}
			fmt.Println(now)
			return nil
		})
	},
}

var echoCmd = &cobra.Command{
	Use:   "echo <text>",
	Short: "Round-trip a string through the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *clockproc.Client) error {
			echoed, err := c.Echo(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(echoed)
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <a> <b>",
	Short: "Add two numbers on the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid number %q: %v", args[0], err)
		}
		b, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid number %q: %v", args[1], err)
		}
		return withClient(cmd, func(ctx context.Context, c *clockproc.Client) error {
			sum, err := c.Add(ctx, int32(a), int32(b))
			if err != nil {
				return err
			}
			fmt.Println(sum)
			return nil
		})
	},
}

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(CallCmd)

	CallCmd.AddCommand(nullCmd)
	CallCmd.AddCommand(nowCmd)
	CallCmd.AddCommand(echoCmd)
	CallCmd.AddCommand(addCmd)
}

// withClient builds a configured client, runs f and closes the connection
func withClient(cmd *cobra.Command, f func(ctx context.Context, c *clockproc.Client) error) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	connector, err := util.GetClientConnector()
	if err != nil {
		return err
	}

	c := clockproc.NewClient(connector, *util.GetClientConfig())
	defer c.Close()

	return f(context.Background(), c)
}
