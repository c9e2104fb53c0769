package grpc

// proto.go hand-writes what protoc-gen-go-grpc would emit for
// bib.loanservicing.v1.LoanServicingService. Messages travel through the JSON
// codec, so plain Go structs stand in for generated types.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
)

const serviceName = "bib.loanservicing.v1.LoanServicingService"

// LoanServicingServiceServer is the server API for LoanServicingService.
type LoanServicingServiceServer interface {
	Quote(context.Context, *QuoteRequest) (*dto.QuoteResponse, error)
	DisburseLoan(context.Context, *DisburseLoanRequest) (*dto.LoanResponse, error)
	ApplyRepayment(context.Context, *ApplyRepaymentRequest) (*dto.RepaymentResponse, error)
	AdvanceAccountingDay(context.Context, *AdvanceAccountingDayRequest) (*dto.ClassificationResponse, error)
	WriteOffLoan(context.Context, *WriteOffLoanRequest) (*dto.WriteOffResponse, error)
	GetLoan(context.Context, *GetLoanRequest) (*dto.LoanResponse, error)
	mustEmbedUnimplementedLoanServicingServiceServer()
}

// UnimplementedLoanServicingServiceServer provides forward-compatible defaults.
type UnimplementedLoanServicingServiceServer struct{}

func (UnimplementedLoanServicingServiceServer) Quote(context.Context, *QuoteRequest) (*dto.QuoteResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Quote not implemented")
}
func (UnimplementedLoanServicingServiceServer) DisburseLoan(context.Context, *DisburseLoanRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DisburseLoan not implemented")
}
func (UnimplementedLoanServicingServiceServer) ApplyRepayment(context.Context, *ApplyRepaymentRequest) (*dto.RepaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ApplyRepayment not implemented")
}
func (UnimplementedLoanServicingServiceServer) AdvanceAccountingDay(context.Context, *AdvanceAccountingDayRequest) (*dto.ClassificationResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AdvanceAccountingDay not implemented")
}
func (UnimplementedLoanServicingServiceServer) WriteOffLoan(context.Context, *WriteOffLoanRequest) (*dto.WriteOffResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method WriteOffLoan not implemented")
}
func (UnimplementedLoanServicingServiceServer) GetLoan(context.Context, *GetLoanRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLoan not implemented")
}
func (UnimplementedLoanServicingServiceServer) mustEmbedUnimplementedLoanServicingServiceServer() {}

// RegisterLoanServicingServiceServer registers srv with s.
func RegisterLoanServicingServiceServer(s grpclib.ServiceRegistrar, srv LoanServicingServiceServer) {
	s.RegisterService(&loanServicingServiceDesc, srv)
}

var loanServicingServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LoanServicingServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Quote", Handler: unary("Quote", LoanServicingServiceServer.Quote)},
		{MethodName: "DisburseLoan", Handler: unary("DisburseLoan", LoanServicingServiceServer.DisburseLoan)},
		{MethodName: "ApplyRepayment", Handler: unary("ApplyRepayment", LoanServicingServiceServer.ApplyRepayment)},
		{MethodName: "AdvanceAccountingDay", Handler: unary("AdvanceAccountingDay", LoanServicingServiceServer.AdvanceAccountingDay)},
		{MethodName: "WriteOffLoan", Handler: unary("WriteOffLoan", LoanServicingServiceServer.WriteOffLoan)},
		{MethodName: "GetLoan", Handler: unary("GetLoan", LoanServicingServiceServer.GetLoan)},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "bib/loanservicing/v1/loan_servicing.proto",
}

// unary adapts a typed server method to grpclib.MethodDesc's handler shape.
func unary[Req, Resp any](
	method string,
	call func(LoanServicingServiceServer, context.Context, *Req) (*Resp, error),
) grpclib.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LoanServicingServiceServer), ctx, in)
		}
		info := &grpclib.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LoanServicingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
